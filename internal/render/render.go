// Package render turns a documented project tree into output documents:
// Markdown (the canonical format, one file per source file), HTML
// (Markdown through goldmark), JSON (the symbol tree verbatim), and RST
// (hand-assembled to mirror the Markdown structure).
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"docweave/internal/model"
)

// Format selects the output document format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatRST      Format = "rst"
)

// File renders one source file's documented symbols in the requested
// format.
func File(f *model.FileRecord, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown, "":
		return []byte(renderMarkdown(f)), nil
	case FormatHTML:
		md := renderMarkdown(f)
		var buf bytes.Buffer
		gm := goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
		if err := gm.Convert([]byte(md), &buf); err != nil {
			return nil, fmt.Errorf("render: markdown to html: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		b, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("render: marshal json: %w", err)
		}
		return b, nil
	case FormatRST:
		return []byte(renderRST(f)), nil
	default:
		return nil, fmt.Errorf("render: unknown format %q", format)
	}
}

func renderMarkdown(f *model.FileRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", f.RelPath)

	var walk func(syms []*model.Symbol, depth int)
	walk = func(syms []*model.Symbol, depth int) {
		for _, sym := range syms {
			heading := strings.Repeat("#", minInt(depth+2, 6))
			fmt.Fprintf(&b, "%s %s\n\n", heading, sym.QualifiedName())
			if sym.Summary != "" {
				fmt.Fprintf(&b, "%s\n\n", sym.Summary)
			}
			if sym.Docstring != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n\n", sym.Docstring)
			}
			walk(sym.Children, depth+1)
		}
	}
	walk(f.Symbols, 0)
	return b.String()
}

func renderRST(f *model.FileRecord) string {
	var b strings.Builder
	title := f.RelPath
	b.WriteString(title + "\n" + strings.Repeat("=", len(title)) + "\n\n")

	underlines := []byte("-~^\"'")
	var walk func(syms []*model.Symbol, depth int)
	walk = func(syms []*model.Symbol, depth int) {
		for _, sym := range syms {
			name := sym.QualifiedName()
			underline := underlines[minInt(depth, len(underlines)-1)]
			b.WriteString(name + "\n" + strings.Repeat(string(underline), len(name)) + "\n\n")
			if sym.Summary != "" {
				b.WriteString(sym.Summary + "\n\n")
			}
			if sym.Docstring != "" {
				b.WriteString("::\n\n    " + strings.ReplaceAll(sym.Docstring, "\n", "\n    ") + "\n\n")
			}
			walk(sym.Children, depth+1)
		}
	}
	walk(f.Symbols, 0)
	return b.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RelativeLink computes the POSIX-relative path a document at fromRelPath
// should use to link to a symbol documented at toRelPath, anchored at the
// callee's qualified name.
func RelativeLink(fromRelPath, toRelPath string, callee *model.Symbol) string {
	rel := relativeSlashPath(fromRelPath, toRelPath)
	return fmt.Sprintf("%s#%s", rel, anchor(callee.QualifiedName()))
}

func relativeSlashPath(from, to string) string {
	fromDir := strings.Join(strings.Split(from, "/")[:max0(len(strings.Split(from, "/"))-1)], "/")
	fromParts := strings.Split(fromDir, "/")
	toParts := strings.Split(to, "/")

	common := 0
	for common < len(fromParts) && common < len(toParts)-1 && fromParts[common] == toParts[common] {
		common++
	}
	ups := len(fromParts) - common
	if fromDir == "" {
		ups = 0
	}
	var parts []string
	for i := 0; i < ups; i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, toParts[common:]...)
	return strings.Join(parts, "/")
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func anchor(qualifiedName string) string {
	return strings.ToLower(strings.ReplaceAll(qualifiedName, ".", "-"))
}

// Preview renders Markdown source for a terminal using glamour, for the
// `docweave preview` subcommand.
func Preview(markdown string) (string, error) {
	out, err := glamour.Render(markdown, "dark")
	if err != nil {
		return "", fmt.Errorf("render: glamour preview: %w", err)
	}
	return out, nil
}
