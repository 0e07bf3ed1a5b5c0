// Package docgen drives the documentation stage: once the call graph is
// extracted, it asks an LLM backend to document every symbol in
// dependency order, leaves first, so a caller's prompt can include the
// already-written summaries of everything it calls, matching
// original_source's behavior of feeding callee summaries into the
// caller's prompt.
package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"docweave/internal/llm"
	"docweave/internal/model"
)

// Documentation is the structured per-symbol output the LLM produces,
// mirroring original_source's description/parameters/returns/examples
// sections (`LLM_documentation_db` in the Python implementation).
type Documentation struct {
	Description string   `json:"description"`
	Parameters  []string `json:"parameters,omitempty"`
	Returns     string   `json:"returns,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// Options configures a Generate run.
type Options struct {
	// ProjectContext is optional free-text background supplied via
	// --project-context, included verbatim in every prompt.
	ProjectContext string
}

// Generate documents every symbol reachable from root, in an order where
// a symbol's callees (per edges) are documented before the symbol
// itself. Symbols left undocumented due to a dependency cycle are
// documented last, in file order, with the summaries of whichever of their
// callees have already been documented by then.
func Generate(ctx context.Context, log *zap.Logger, client llm.Client, root *model.Folder, edges []model.CallEdge, opts Options) error {
	if log == nil {
		log = zap.NewNop()
	}
	if client == nil {
		return nil
	}

	symbols := flatten(root)
	byID := make(map[int64]*model.Symbol, len(symbols))
	for _, s := range symbols {
		byID[s.ID] = s
	}

	callees, callers := buildGraph(edges, byID)
	order := leavesFirstOrder(symbols, callees, callers)

	for _, sym := range order {
		if sym.Documented {
			continue
		}
		calleeSummaries := summariesOf(callees[sym.ID], byID)
		doc, err := document(ctx, client, sym, calleeSummaries, opts.ProjectContext)
		if err != nil {
			log.Warn("documentation generation failed", zap.String("symbol", sym.QualifiedName()), zap.Error(err))
			continue
		}
		applyDocumentation(sym, doc)
	}
	return nil
}

func flatten(root *model.Folder) []*model.Symbol {
	var out []*model.Symbol
	var walkFile func(f *model.FileRecord)
	walkFile = func(f *model.FileRecord) {
		var walkSym func(syms []*model.Symbol)
		walkSym = func(syms []*model.Symbol) {
			for _, s := range syms {
				out = append(out, s)
				walkSym(s.Children)
			}
		}
		walkSym(f.Symbols)
	}
	var walkFolder func(f *model.Folder)
	walkFolder = func(f *model.Folder) {
		for _, file := range f.Files {
			walkFile(file)
		}
		for _, sub := range f.Subfolders {
			walkFolder(sub)
		}
	}
	walkFolder(root)
	return out
}

// buildGraph returns, for every symbol ID, the distinct callees it calls
// and the distinct callers that call it, restricted to symbols actually
// present in byID.
func buildGraph(edges []model.CallEdge, byID map[int64]*model.Symbol) (callees, callers map[int64][]int64) {
	callees = make(map[int64][]int64)
	callers = make(map[int64][]int64)
	seenCallee := make(map[[2]int64]struct{})
	for _, e := range edges {
		if _, ok := byID[e.CallerID]; !ok {
			continue
		}
		if _, ok := byID[e.CalleeID]; !ok {
			continue
		}
		key := [2]int64{e.CallerID, e.CalleeID}
		if _, dup := seenCallee[key]; dup {
			continue
		}
		seenCallee[key] = struct{}{}
		callees[e.CallerID] = append(callees[e.CallerID], e.CalleeID)
		callers[e.CalleeID] = append(callers[e.CalleeID], e.CallerID)
	}
	return callees, callers
}

// leavesFirstOrder performs a Kahn's-algorithm topological sort where a
// symbol becomes ready once every symbol it calls has already been
// ordered: symbols with zero outgoing calls (true leaves) are ready
// immediately. Any symbols left over because of a call cycle are
// appended afterward in a stable, deterministic order.
func leavesFirstOrder(symbols []*model.Symbol, callees, callers map[int64][]int64) []*model.Symbol {
	remaining := make(map[int64]int, len(symbols))
	for _, s := range symbols {
		remaining[s.ID] = len(dedupe(callees[s.ID]))
	}

	byID := make(map[int64]*model.Symbol, len(symbols))
	for _, s := range symbols {
		byID[s.ID] = s
	}

	var ready []*model.Symbol
	for _, s := range symbols {
		if remaining[s.ID] == 0 {
			ready = append(ready, s)
		}
	}
	sortStable(ready)

	var order []*model.Symbol
	processed := make(map[int64]struct{}, len(symbols))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		if _, done := processed[next.ID]; done {
			continue
		}
		processed[next.ID] = struct{}{}
		order = append(order, next)

		var newlyReady []*model.Symbol
		for _, callerID := range dedupe(callers[next.ID]) {
			remaining[callerID]--
			if remaining[callerID] == 0 {
				if caller, ok := byID[callerID]; ok {
					newlyReady = append(newlyReady, caller)
				}
			}
		}
		sortStable(newlyReady)
		ready = append(ready, newlyReady...)
	}

	if len(order) < len(symbols) {
		var leftover []*model.Symbol
		for _, s := range symbols {
			if _, done := processed[s.ID]; !done {
				leftover = append(leftover, s)
			}
		}
		sortStable(leftover)
		order = append(order, leftover...)
	}
	return order
}

func sortStable(syms []*model.Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		fi, fj := syms[i].File, syms[j].File
		if fi != fj {
			if fi == nil || fj == nil {
				return fi != nil
			}
			return fi.RelPath < fj.RelPath
		}
		return syms[i].ID < syms[j].ID
	})
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	var out []int64
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func summariesOf(calleeIDs []int64, byID map[int64]*model.Symbol) map[string]string {
	out := make(map[string]string)
	for _, id := range dedupe(calleeIDs) {
		if s, ok := byID[id]; ok && s.Summary != "" {
			out[s.QualifiedName()] = s.Summary
		}
	}
	return out
}

func document(ctx context.Context, client llm.Client, sym *model.Symbol, calleeSummaries map[string]string, projectContext string) (Documentation, error) {
	prompt := buildPrompt(sym, calleeSummaries, projectContext)
	opts := llm.DefaultCompletionOptions()
	opts.SystemPrompt = "You are a senior engineer writing concise, accurate API documentation. Respond with a single JSON object only."

	var doc Documentation
	if err := client.CompleteJSON(ctx, prompt, opts, &doc); err != nil {
		return Documentation{}, fmt.Errorf("docgen: document %s: %w", sym.QualifiedName(), err)
	}
	return doc, nil
}

func buildPrompt(sym *model.Symbol, calleeSummaries map[string]string, projectContext string) string {
	var b strings.Builder
	if projectContext != "" {
		fmt.Fprintf(&b, "Project context:\n%s\n\n", projectContext)
	}
	fmt.Fprintf(&b, "Document the %s %q", strings.ToLower(kindLabel(sym.Kind)), sym.QualifiedName())
	if sym.File != nil {
		fmt.Fprintf(&b, " defined in %s", sym.File.RelPath)
	}
	b.WriteString(".\n")
	if sym.Docstring != "" {
		fmt.Fprintf(&b, "\nExisting docstring:\n%s\n", sym.Docstring)
	}
	if len(calleeSummaries) > 0 {
		b.WriteString("\nIt calls the following already-documented symbols:\n")
		names := make([]string, 0, len(calleeSummaries))
		for name := range calleeSummaries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s\n", name, calleeSummaries[name])
		}
	}
	b.WriteString("\nRespond with a JSON object with keys \"description\" (string), " +
		"\"parameters\" (array of strings, omit if none), \"returns\" (string, omit if none), " +
		"and \"examples\" (array of strings, omit if none).")
	return b.String()
}

func kindLabel(k model.SymbolKind) string {
	switch k {
	case model.KindFunction:
		return "function"
	case model.KindMethod:
		return "method"
	case model.KindClass:
		return "class"
	case model.KindStruct:
		return "struct"
	case model.KindInterface:
		return "interface"
	case model.KindConstructor:
		return "constructor"
	default:
		return "symbol"
	}
}

func applyDocumentation(sym *model.Symbol, doc Documentation) {
	sym.Summary = doc.Description
	if b, err := json.Marshal(doc); err == nil {
		sym.Documentation = b
	}
	sym.Documented = true
}
