// Package extractor turns a language server's documentSymbol/definition/
// references responses into the project's own Symbol tree and CallEdge
// list: open each file once, keep only symbols whose own kind or a
// descendant's kind is wanted, drop anything that is not itself a
// definition, then resolve every surviving symbol's references into
// caller/callee edges.
package extractor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"docweave/internal/cache"
	"docweave/internal/lspclient"
	"docweave/internal/model"
)

// KindFilter reports whether a symbol kind should be kept in the
// extracted tree. Supplied by the language config table (internal/config).
type KindFilter func(model.SymbolKind) bool

// FileContentFunc reads the content of a project-relative file path,
// typically backed by os.ReadFile against the project root.
type FileContentFunc func(relPath string) (string, error)

// Extractor drives one language's client across every file assigned to
// that language.
type Extractor struct {
	client     *lspclient.Client
	readFile   FileContentFunc
	wantKind   KindFilter
	languageID string
	cache      *cache.FileCache
	log        *zap.Logger

	// importKind is the raw LSP SymbolKind integer this language's server
	// uses to report import/use declarations in documentSymbol, from
	// config.ServerSpec.ImportSymbolKind; 0 disables import detection.
	importKind int

	// mayIncludeDeclaration mirrors config.ServerSpec's
	// IncludeDeclarationSemantics: true when this language's server is
	// known to sometimes return the declaration itself from
	// textDocument/references despite includeDeclaration=false, so the
	// defensive same-range post-filter in referencesOf is worth the extra
	// comparison. Servers whose semantics are reliable
	// ("excludesDeclaration") skip it.
	mayIncludeDeclaration bool

	nextSymbolID int64
}

// New builds an Extractor bound to an already-initialized LSP client.
func New(client *lspclient.Client, languageID string, readFile FileContentFunc, wantKind KindFilter, fc *cache.FileCache) *Extractor {
	if wantKind == nil {
		wantKind = func(model.SymbolKind) bool { return true }
	}
	return &Extractor{client: client, readFile: readFile, wantKind: wantKind, languageID: languageID, cache: fc, log: zap.NewNop()}
}

// WithImportKind configures the raw LSP SymbolKind integer that denotes an
// import declaration for this extractor's language, per
// config.ServerSpec.ImportSymbolKind. Zero (the default) disables import
// classification entirely.
func (e *Extractor) WithImportKind(kind int) *Extractor {
	e.importKind = kind
	return e
}

// WithLogger attaches a zap logger used for non-fatal extraction warnings.
func (e *Extractor) WithLogger(l *zap.Logger) *Extractor {
	if l != nil {
		e.log = l
	}
	return e
}

// WithIncludeDeclarationSemantics configures how this language's server
// behaves when asked for references with includeDeclaration=false, per
// config.ServerSpec.IncludeDeclarationSemantics. "mayIncludeDeclaration"
// (or an empty/unrecognized value) keeps the defensive same-range
// post-filter; "excludesDeclaration" trusts the server and skips it.
func (e *Extractor) WithIncludeDeclarationSemantics(semantics string) *Extractor {
	e.mayIncludeDeclaration = semantics != "excludesDeclaration"
	return e
}

// ExtractFile opens relPath, requests its document symbols, converts them
// to the project Symbol tree, and applies the recursive kind-preserving
// filter: a symbol survives if its own kind is wanted or any descendant's
// kind is wanted.
func (e *Extractor) ExtractFile(ctx context.Context, file *model.FileRecord) error {
	content, err := e.readFile(file.RelPath)
	if err != nil {
		return fmt.Errorf("extractor: read %s: %w", file.RelPath, err)
	}

	if err := e.client.OpenDocument(file.RelPath, e.languageID, content); err != nil {
		return fmt.Errorf("extractor: open %s: %w", file.RelPath, err)
	}

	lspSymbols, err := e.client.DocumentSymbols(ctx, file.RelPath)
	if err != nil {
		return fmt.Errorf("extractor: documentSymbol %s: %w", file.RelPath, err)
	}

	var kept []*model.Symbol
	for _, ls := range lspSymbols {
		if sym, ok := e.convert(ls, file, nil); ok {
			kept = append(kept, sym)
		}
	}
	file.Symbols = kept
	if e.cache != nil {
		e.cache.Put(file.RelPath, file)
	}
	return nil
}

func (e *Extractor) convert(ls lspclient.DocumentSymbol, file *model.FileRecord, parent *model.Symbol) (*model.Symbol, bool) {
	sym := &model.Symbol{
		ID:             e.allocID(),
		Name:           symbolName(ls.Name),
		Kind:           e.kindOf(ls.Kind),
		File:           file,
		Range:          convertRange(ls.Range),
		SelectionRange: convertRange(ls.SelectionRange),
		Parent:         parent,
	}

	var children []*model.Symbol
	descendantWanted := false
	for _, lc := range ls.Children {
		if child, ok := e.convert(lc, file, sym); ok {
			children = append(children, child)
			descendantWanted = true
		}
	}
	sym.Children = children

	if !e.wantKind(sym.Kind) && !descendantWanted {
		return nil, false
	}
	return sym, true
}

// kindOf classifies a raw LSP SymbolKind, recognizing this language's
// configured import kind ahead of the generic 1:1 numeric mapping.
func (e *Extractor) kindOf(lspKind int) model.SymbolKind {
	if e.importKind != 0 && lspKind == e.importKind {
		return model.KindImport
	}
	return lspclient.KindOf(lspKind)
}

func symbolName(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

func convertRange(r lspclient.Range) model.Range {
	return model.Range{
		Start: model.Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   model.Position{Line: r.End.Line, Character: r.End.Character},
	}
}

func (e *Extractor) allocID() int64 {
	e.nextSymbolID++
	return e.nextSymbolID
}

// FilterDefinitions drops every symbol in file.Symbols (transitively) that
// does not itself satisfy textDocument/definition: calling Definition at
// the symbol's SelectionRange.Start must return a location in the same
// file whose range structurally equals the symbol's own SelectionRange.
func (e *Extractor) FilterDefinitions(ctx context.Context, file *model.FileRecord) error {
	kept, err := e.filterSiblings(ctx, file, file.Symbols)
	if err != nil {
		return err
	}
	file.Symbols = kept
	return nil
}

func (e *Extractor) filterSiblings(ctx context.Context, file *model.FileRecord, symbols []*model.Symbol) ([]*model.Symbol, error) {
	var kept []*model.Symbol
	for _, sym := range symbols {
		// Import symbols resolve textDocument/definition into the
		// imported file, not their own selectionRange, so the same-file
		// definition filter never applies to them: they are kept
		// unconditionally once classified as an import.
		if sym.Kind != model.KindImport {
			isDef, err := e.isDefinition(ctx, file, sym)
			if err != nil {
				return nil, err
			}
			if !isDef {
				continue
			}
		}
		filteredChildren, err := e.filterSiblings(ctx, file, sym.Children)
		if err != nil {
			return nil, err
		}
		sym.Children = filteredChildren
		kept = append(kept, sym)
	}
	return kept, nil
}

func (e *Extractor) isDefinition(ctx context.Context, file *model.FileRecord, sym *model.Symbol) (bool, error) {
	pos := lspclient.Position{Line: sym.SelectionRange.Start.Line, Character: sym.SelectionRange.Start.Character}
	locations, err := e.client.Definition(ctx, file.RelPath, pos)
	if err != nil {
		return false, fmt.Errorf("extractor: definition check for %s: %w", sym.Name, err)
	}
	for _, loc := range locations {
		relPath, ok := e.client.RelPath(loc.URI)
		if !ok || relPath != file.RelPath {
			continue
		}
		if convertRange(loc.Range).Equal(sym.SelectionRange) {
			return true, nil
		}
	}
	return false, nil
}

// ProjectIndex resolves a project-relative path to its FileRecord across
// the whole project tree, used while resolving references to their caller.
type ProjectIndex interface {
	FileByRelPath(relPath string) (*model.FileRecord, bool)
}

// ExtractReferences resolves references for every surviving symbol in
// file.Symbols (recursively) into CallEdges against the rest of the
// project, using idx to locate the referencing file.
func (e *Extractor) ExtractReferences(ctx context.Context, file *model.FileRecord, idx ProjectIndex) ([]model.CallEdge, error) {
	var edges []model.CallEdge
	var walk func(symbols []*model.Symbol) error
	walk = func(symbols []*model.Symbol) error {
		for _, sym := range symbols {
			found, err := e.referencesOf(ctx, file, sym, idx)
			if err != nil {
				return err
			}
			edges = append(edges, found...)
			if err := walk(sym.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(file.Symbols); err != nil {
		return nil, err
	}
	return edges, nil
}

func (e *Extractor) referencesOf(ctx context.Context, file *model.FileRecord, sym *model.Symbol, idx ProjectIndex) ([]model.CallEdge, error) {
	// Imports are first-class symbols but never recorded as callees.
	if sym.Kind == model.KindImport {
		return nil, nil
	}

	pos := lspclient.Position{Line: sym.SelectionRange.Start.Line, Character: sym.SelectionRange.Start.Character}
	locations, err := e.client.References(ctx, file.RelPath, pos)
	if err != nil {
		return nil, fmt.Errorf("extractor: references for %s: %w", sym.Name, err)
	}

	seen := make(map[int64]struct{})
	var edges []model.CallEdge
	for _, loc := range locations {
		relPath, ok := e.client.RelPath(loc.URI)
		if !ok {
			e.log.Warn("reference location could not be rebased under the project root, skipping",
				zap.String("symbol", sym.Name), zap.String("uri", loc.URI))
			continue
		}
		owningFile, ok := idx.FileByRelPath(relPath)
		if !ok {
			continue
		}
		refRange := convertRange(loc.Range)
		if e.mayIncludeDeclaration && refRange.Equal(sym.SelectionRange) && relPath == file.RelPath {
			// mayIncludeDeclaration servers can return the declaration
			// itself even when includeDeclaration=false was requested.
			continue
		}

		enclosing := mostSpecificEnclosing(owningFile.Symbols, refRange)
		if enclosing == nil || enclosing.ID == sym.ID {
			continue
		}
		if _, dup := seen[enclosing.ID]; dup {
			continue
		}
		seen[enclosing.ID] = struct{}{}
		edges = append(edges, model.CallEdge{CallerID: enclosing.ID, CalleeID: sym.ID})
	}
	return edges, nil
}

// mostSpecificEnclosing finds the symbol among symbols (searched
// recursively) whose Range contains target and whose Range is smallest
// among all candidates, breaking ties by smallest range as specified.
func mostSpecificEnclosing(symbols []*model.Symbol, target model.Range) *model.Symbol {
	var candidates []*model.Symbol
	var collect func([]*model.Symbol)
	collect = func(syms []*model.Symbol) {
		for _, s := range syms {
			if s.Range.Contains(target) {
				candidates = append(candidates, s)
			}
			collect(s.Children)
		}
	}
	collect(symbols)
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return rangeSpan(candidates[i].Range) < rangeSpan(candidates[j].Range)
	})
	return candidates[0]
}

func rangeSpan(r model.Range) int {
	lines := r.End.Line - r.Start.Line
	return lines*100000 + (r.End.Character - r.Start.Character)
}
