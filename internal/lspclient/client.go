// Package lspclient drives a single language server subprocess over stdio:
// initialize, didOpen, documentSymbol, definition, references, and a
// graceful shutdown/exit sequence. It supports both a host-executed server
// and one launched inside a container, matching the two extraction modes
// the orchestrator can run in.
package lspclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"docweave/internal/model"
	"docweave/internal/rpc"
	"docweave/internal/transport"
	"docweave/internal/uri"
)

// Per-call timeouts. documentSymbol and references get the longest, since
// they can be expensive on large files; initialize gets more than the
// baseline since the server may index the whole workspace before it
// responds.
const (
	initializeTimeout   = 30 * time.Second
	baselineTimeout     = 20 * time.Second
	expensiveTimeout    = 60 * time.Second
	shutdownGracePeriod = 5 * time.Second
)

// ServerSpec names the command used to launch a language server, either
// directly on the host or via `docker run`.
type ServerSpec struct {
	Language LanguageID
	Command  string
	Args     []string
	// Image is set when the server should run inside a container instead
	// of on the host.
	Image string
	// InitializationOptions is passed through verbatim as the
	// initialize request's initializationOptions, letting a language's
	// config table supply server-specific settings (e.g. Python analysis
	// settings for pylsp).
	InitializationOptions map[string]any
}

// LanguageID is the LSP languageId sent with textDocument/didOpen.
type LanguageID string

// Position/Range/Location/DocumentSymbol mirror the LSP wire shapes.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           int              `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// Client drives one language server subprocess for the lifetime of a
// single-language extraction session.
type Client struct {
	cmd     *exec.Cmd
	session *rpc.Session
	stdin   io.WriteCloser

	reconciler *uri.Reconciler
	state      model.SessionState
	log        *zap.Logger
	initOpts   map[string]any

	opened map[string]struct{}
}

// Option customizes client construction.
type Option func(*Client)

// WithLogger attaches a zap logger used for lifecycle and protocol-level
// messages; if omitted a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Start launches the language server described by spec and performs the
// initialize/initialized handshake against projectRoot. When container is
// true and spec.Image is set, the server runs via `docker run` and paths
// are rebased to /workspace; otherwise it runs on the host with host paths.
func Start(ctx context.Context, spec ServerSpec, projectRoot string, container bool, opts ...Option) (*Client, error) {
	inContainer := container && spec.Image != ""
	var cmd *exec.Cmd
	if inContainer {
		cmd = containerCommand(ctx, spec, projectRoot)
	} else {
		cmd = exec.CommandContext(ctx, spec.Command, spec.Args...)
		cmd.Dir = projectRoot
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lspclient: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("lspclient: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("lspclient: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lspclient: start %s: %w", spec.Command, err)
	}

	c := &Client{
		cmd:        cmd,
		session:    rpc.NewSession(transport.New(stdout, stdin)),
		stdin:      stdin,
		reconciler: uri.New(projectRoot, inContainer),
		state:      model.StateStarting,
		log:        zap.NewNop(),
		initOpts:   spec.InitializationOptions,
		opened:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.drainNotifications()
	go io.Copy(io.Discard, stderr)

	if err := c.initialize(ctx); err != nil {
		_ = c.Close(context.Background())
		c.state = model.StateFailed
		return nil, err
	}
	c.state = model.StateInitialized
	return c, nil
}

func containerCommand(ctx context.Context, spec ServerSpec, projectRoot string) *exec.Cmd {
	args := []string{"run", "-i", "--rm", "-v", projectRoot + ":/workspace", "-w", "/workspace", spec.Image}
	args = append(args, spec.Command)
	args = append(args, spec.Args...)
	return exec.CommandContext(ctx, "docker", args...)
}

// drainNotifications routes window/logMessage and window/showMessage into
// the zap logger; everything else is discarded.
func (c *Client) drainNotifications() {
	for n := range c.session.Notifications {
		switch n.Method {
		case "window/logMessage", "window/showMessage":
			var params struct {
				Type    int    `json:"type"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(n.Params, &params); err == nil {
				c.log.Debug("lsp server message", zap.Int("type", params.Type), zap.String("message", params.Message))
			}
		}
	}
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]any{
		// No parent process owns this server: it is launched fresh for
		// each extraction session, so processId is null rather than our
		// own pid.
		"processId": nil,
		"rootUri":   c.reconciler.RootURI(),
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"documentSymbol": map[string]any{
					"hierarchicalDocumentSymbolSupport": true,
				},
				"definition": map[string]any{
					"linkSupport": true,
				},
				"references": map[string]any{},
			},
		},
	}
	if len(c.initOpts) > 0 {
		params["initializationOptions"] = c.initOpts
	}

	if _, err := c.session.CallTimeout(ctx, initializeTimeout, "initialize", params); err != nil {
		return fmt.Errorf("lspclient: initialize: %w", err)
	}
	if err := c.session.Notify("initialized", map[string]any{}); err != nil {
		return fmt.Errorf("lspclient: initialized notification: %w", err)
	}
	return nil
}

// OpenDocument sends textDocument/didOpen once per relPath for the
// lifetime of the client; repeat calls are no-ops, mirroring the
// extractor's single-open-per-file invariant.
func (c *Client) OpenDocument(relPath, languageID, content string) error {
	u := c.reconciler.ToURI(relPath)
	if _, already := c.opened[u]; already {
		return nil
	}
	params := map[string]any{
		"textDocument": map[string]any{
			"uri":        u,
			"languageId": languageID,
			"version":    1,
			"text":       content,
		},
	}
	if err := c.session.Notify("textDocument/didOpen", params); err != nil {
		return fmt.Errorf("lspclient: didOpen %s: %w", relPath, err)
	}
	c.opened[u] = struct{}{}
	return nil
}

// CloseDocument sends textDocument/didClose.
func (c *Client) CloseDocument(relPath string) error {
	u := c.reconciler.ToURI(relPath)
	delete(c.opened, u)
	return c.session.Notify("textDocument/didClose", map[string]any{
		"textDocument": map[string]any{"uri": u},
	})
}

// DocumentSymbols requests textDocument/documentSymbol for relPath.
func (c *Client) DocumentSymbols(ctx context.Context, relPath string) ([]DocumentSymbol, error) {
	params := map[string]any{
		"textDocument": map[string]any{"uri": c.reconciler.ToURI(relPath)},
	}
	result, err := c.session.CallTimeout(ctx, expensiveTimeout, "textDocument/documentSymbol", params)
	if err != nil {
		return nil, fmt.Errorf("lspclient: documentSymbol %s: %w", relPath, err)
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	var symbols []DocumentSymbol
	if err := json.Unmarshal(result, &symbols); err != nil {
		return nil, fmt.Errorf("lspclient: unmarshal documentSymbol %s: %w", relPath, err)
	}
	return symbols, nil
}

// Definition requests textDocument/definition at pos in relPath.
func (c *Client) Definition(ctx context.Context, relPath string, pos Position) ([]Location, error) {
	params := map[string]any{
		"textDocument": map[string]any{"uri": c.reconciler.ToURI(relPath)},
		"position":     pos,
	}
	result, err := c.session.CallTimeout(ctx, baselineTimeout, "textDocument/definition", params)
	if err != nil {
		return nil, fmt.Errorf("lspclient: definition %s: %w", relPath, err)
	}
	return parseLocations(result)
}

// References requests textDocument/references at pos in relPath, never
// requesting the declaration itself (the extractor resolves definitions
// separately).
func (c *Client) References(ctx context.Context, relPath string, pos Position) ([]Location, error) {
	params := map[string]any{
		"textDocument": map[string]any{"uri": c.reconciler.ToURI(relPath)},
		"position":     pos,
		"context":      map[string]any{"includeDeclaration": false},
	}
	result, err := c.session.CallTimeout(ctx, expensiveTimeout, "textDocument/references", params)
	if err != nil {
		return nil, fmt.Errorf("lspclient: references %s: %w", relPath, err)
	}
	return parseLocations(result)
}

func parseLocations(raw json.RawMessage) ([]Location, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	// A definition response may be a single Location or an array of them.
	var list []Location
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single Location
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("lspclient: unmarshal location(s): %w", err)
	}
	return []Location{single}, nil
}

// RelPath exposes the reconciler's URI->relative-path mapping for callers
// resolving references/definitions that point outside the currently open
// file.
func (c *Client) RelPath(locationURI string) (string, bool) {
	return c.reconciler.FromURI(locationURI)
}

// Close performs the shutdown/exit sequence and waits (with a grace
// period) for the subprocess to exit.
func (c *Client) Close(ctx context.Context) error {
	c.state = model.StateShuttingDown
	shutdownCtx, cancel := context.WithTimeout(ctx, baselineTimeout)
	defer cancel()
	_, _ = c.session.Call(shutdownCtx, "shutdown", nil)
	_ = c.session.Notify("exit", nil)
	_ = c.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(shutdownGracePeriod):
		_ = c.cmd.Process.Kill()
		<-done
	}
	c.state = model.StateStopped
	return nil
}

// State returns the client's current session-lifecycle state.
func (c *Client) State() model.SessionState {
	return c.state
}

// KindOf maps the LSP SymbolKind integer to the project's own enum.
func KindOf(lspKind int) model.SymbolKind {
	if lspKind < 1 || lspKind > 26 {
		return model.KindUnknown
	}
	return model.SymbolKind(lspKind)
}
