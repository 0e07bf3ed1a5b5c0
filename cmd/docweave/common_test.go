package docweave

import (
	"testing"

	"docweave/internal/render"
)

func TestExtensionFor(t *testing.T) {
	cases := map[render.Format]string{
		render.FormatMarkdown: ".md",
		render.FormatHTML:     ".html",
		render.FormatJSON:     ".json",
		render.FormatRST:      ".rst",
	}
	for format, want := range cases {
		if got := extensionFor(format); got != want {
			t.Fatalf("extensionFor(%q) = %q, want %q", format, got, want)
		}
	}
}
