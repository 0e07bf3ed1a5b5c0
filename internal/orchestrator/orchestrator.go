// Package orchestrator sequences one LSP session per language across a
// walked project tree: start the client, extract every file assigned to
// that language (symbols, definition filter, references), shut the
// client down, then move to the next language. Languages are processed
// strictly one at a time, never concurrently, matching the stricter
// sequencing this project adopts over the original's all-at-once model.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"docweave/internal/cache"
	"docweave/internal/config"
	"docweave/internal/extractor"
	"docweave/internal/gitmeta"
	"docweave/internal/lspclient"
	"docweave/internal/model"
	"docweave/internal/progress"
	"docweave/internal/walker"
)

// ToolVersion is stamped into every persisted ProjectData row; set from
// the build via -ldflags, defaulting to "dev".
var ToolVersion = "dev"

// Deps bundles the collaborators an orchestration run is wired with,
// passed explicitly rather than read from package globals.
type Deps struct {
	Logger   *zap.Logger
	Tracer   trace.Tracer
	Progress *progress.Reporter
	Cache    *cache.FileCache
}

// Options configures one Run.
type Options struct {
	ProjectRoot string
	Config      *config.Tables
	Container   bool // run LSP servers inside Docker instead of on the host
}

// Result is everything a Run produced, ready to hand to the Store
// Adapter and the Output Renderer.
type Result struct {
	Root    *model.Folder
	Edges   []model.CallEdge
	Project model.ProjectData
}

// index implements extractor.ProjectIndex over a flattened file list
// built once per run.
type index struct {
	byRelPath map[string]*model.FileRecord
	cache     *cache.FileCache
}

func (i *index) FileByRelPath(relPath string) (*model.FileRecord, bool) {
	if i.cache != nil {
		if rec, ok := i.cache.Get(relPath); ok {
			return rec, true
		}
	}
	rec, ok := i.byRelPath[relPath]
	return rec, ok
}

// Run walks opts.ProjectRoot, then for every language present in the
// tree: starts an LSP client, extracts document symbols for each file of
// that language, filters to definitions only, resolves references into
// call edges, and shuts the client down before moving to the next
// language.
func Run(ctx context.Context, deps Deps, opts Options) (*Result, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	policy := walker.IgnorePolicy{
		DirNames:     toSet(opts.Config.Ignore.DirNames),
		Globs:        opts.Config.Ignore.Globs,
		ExtBlocklist: toSet(opts.Config.Ignore.ExtBlocklist),
	}
	root, err := walker.Walk(opts.ProjectRoot, policy, opts.Config.LanguageOf)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: walk %s: %w", opts.ProjectRoot, err)
	}

	files := walker.FlattenFiles(root)
	idx := &index{byRelPath: make(map[string]*model.FileRecord, len(files)), cache: deps.Cache}
	byLanguage := make(map[model.LanguageTag][]*model.FileRecord)
	for _, f := range files {
		idx.byRelPath[f.RelPath] = f
		if f.Language != "" {
			byLanguage[f.Language] = append(byLanguage[f.Language], f)
		}
	}

	var allEdges []model.CallEdge
	for lang, langFiles := range byLanguage {
		edges, err := runLanguageSession(ctx, deps, opts, log, lang, langFiles, idx)
		if err != nil {
			log.Warn("language session failed, continuing with remaining languages",
				zap.String("language", string(lang)), zap.Error(err))
			continue
		}
		allEdges = append(allEdges, edges...)
	}

	info, _ := gitmeta.Lookup(opts.ProjectRoot)
	project := model.ProjectData{
		RunID:        uuid.New().String(),
		Name:         filepath.Base(opts.ProjectRoot),
		RootPath:     opts.ProjectRoot,
		CommitHash:   info.CommitHash,
		RemoteURL:    info.RemoteURL,
		ScannedAtRFC: time.Now().UTC().Format(time.RFC3339),
		ToolVersion:  ToolVersion,
	}

	return &Result{Root: root, Edges: allEdges, Project: project}, nil
}

func runLanguageSession(ctx context.Context, deps Deps, opts Options, log *zap.Logger, lang model.LanguageTag, files []*model.FileRecord, idx *index) ([]model.CallEdge, error) {
	serverSpec, ok := opts.Config.LSPServers[lang]
	if !ok {
		log.Debug("no lsp server configured, skipping language", zap.String("language", string(lang)))
		return nil, nil
	}

	ctx, span := startSpan(ctx, deps.Tracer, "orchestrator.language_session",
		attribute.String("language", string(lang)),
		attribute.Int("file_count", len(files)),
	)
	defer span.End()

	client, err := lspclient.Start(ctx, lspclient.ServerSpec{
		Language:              lspclient.LanguageID(lang),
		Command:               serverSpec.Command,
		Args:                  serverSpec.Args,
		Image:                 serverSpec.Image,
		InitializationOptions: serverSpec.InitializationOptions,
	}, opts.ProjectRoot, opts.Container, lspclient.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: start %s session: %w", lang, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(shutdownCtx); err != nil {
			log.Warn("lsp client shutdown error", zap.String("language", string(lang)), zap.Error(err))
		}
	}()

	ex := extractor.New(client, string(lang), readFileFunc(opts.ProjectRoot), nil, deps.Cache).
		WithImportKind(serverSpec.ImportSymbolKind).
		WithIncludeDeclarationSemantics(serverSpec.IncludeDeclarationSemantics).
		WithLogger(log)

	for i, file := range files {
		if err := extractOneFile(ctx, deps.Tracer, ex, file); err != nil {
			log.Warn("extraction failed for file, skipping", zap.String("file", file.RelPath), zap.Error(err))
			continue
		}
		if deps.Progress != nil {
			deps.Progress.Report(progress.Update{Language: string(lang), Processed: i + 1, Total: len(files)})
		}
	}

	var edges []model.CallEdge
	for _, file := range files {
		fileEdges, err := ex.ExtractReferences(ctx, file, idx)
		if err != nil {
			log.Warn("reference resolution failed for file", zap.String("file", file.RelPath), zap.Error(err))
			continue
		}
		edges = append(edges, fileEdges...)
	}

	return edges, nil
}

func extractOneFile(ctx context.Context, tracer trace.Tracer, ex *extractor.Extractor, file *model.FileRecord) error {
	ctx, span := startSpan(ctx, tracer, "orchestrator.extract_file", attribute.String("file", file.RelPath))
	defer span.End()

	if err := ex.ExtractFile(ctx, file); err != nil {
		return err
	}
	if err := ex.FilterDefinitions(ctx, file); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("symbol_count", len(file.Symbols)))
	return nil
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func readFileFunc(projectRoot string) extractor.FileContentFunc {
	return func(relPath string) (string, error) {
		b, err := os.ReadFile(filepath.Join(projectRoot, relPath))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}
