package docweave

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docweave/internal/render"
)

var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Render a generated Markdown document for the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	b, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("docweave: read %s: %w", args[0], err)
	}

	out, err := render.Preview(string(b))
	if err != nil {
		return fmt.Errorf("docweave: preview %s: %w", args[0], err)
	}

	fmt.Print(out)
	return nil
}
