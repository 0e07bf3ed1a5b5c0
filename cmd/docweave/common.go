package docweave

import (
	"fmt"
	"os"
	"path/filepath"

	"docweave/internal/orchestrator"
	"docweave/internal/render"
	"docweave/internal/walker"
)

func renderTree(result *orchestrator.Result, outDir string, format render.Format) error {
	ext := extensionFor(format)
	for _, file := range walker.FlattenFiles(result.Root) {
		b, err := render.File(file, format)
		if err != nil {
			return fmt.Errorf("render %s: %w", file.RelPath, err)
		}

		target := filepath.Join(outDir, file.RelPath+ext)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create output dir for %s: %w", file.RelPath, err)
		}
		if err := os.WriteFile(target, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	}
	return nil
}

func extensionFor(format render.Format) string {
	switch format {
	case render.FormatHTML:
		return ".html"
	case render.FormatJSON:
		return ".json"
	case render.FormatRST:
		return ".rst"
	default:
		return ".md"
	}
}
