// Package config loads docweave's JSON(+comments) configuration tables —
// language classification, LSP server commands, ignore policy, and
// gitignore template names — validating each against its embedded JSON
// Schema before it is trusted anywhere else in the pipeline. The gitignore
// template table is loaded and validated only; nothing else reads it.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"docweave/internal/jsonc"
	"docweave/internal/model"
	"docweave/schemas"
)

// ServerSpec describes how to launch the LSP server for one language.
type ServerSpec struct {
	Command                     string         `json:"command"`
	Args                        []string       `json:"args,omitempty"`
	Image                       string         `json:"image,omitempty"`
	IncludeDeclarationSemantics string         `json:"includeDeclarationSemantics,omitempty"`
	InitializationOptions       map[string]any `json:"initializationOptions,omitempty"`
	// ImportSymbolKind is the raw LSP SymbolKind integer this language's
	// server uses to report an import/use declaration in documentSymbol,
	// when it reports one at all; 0 means the server never does.
	ImportSymbolKind int `json:"importSymbolKind,omitempty"`
}

// IgnorePolicy is the raw, unvalidated shape of ignore.jsonc.
type IgnorePolicy struct {
	DirNames     []string `json:"dirNames,omitempty"`
	Globs        []string `json:"globs,omitempty"`
	ExtBlocklist []string `json:"extBlocklist,omitempty"`
}

// Tables bundles everything loaded from the config directory.
type Tables struct {
	Languages          map[string]model.LanguageTag
	LSPServers         map[model.LanguageTag]ServerSpec
	Ignore             IgnorePolicy
	GitignoreTemplates map[model.LanguageTag]string
}

// Load reads and schema-validates every table under dir. dir defaults to
// ".docweave/config" when empty.
func Load(dir string) (*Tables, error) {
	if dir == "" {
		dir = filepath.Join(".docweave", "config")
	}

	var t Tables
	if err := loadTable(dir, "languages.jsonc", schemas.Languages, &t.Languages); err != nil {
		return nil, err
	}
	if err := loadTable(dir, "lsp-servers.jsonc", schemas.LSPServers, &t.LSPServers); err != nil {
		return nil, err
	}
	if err := loadTable(dir, "ignore.jsonc", schemas.Ignore, &t.Ignore); err != nil {
		return nil, err
	}
	if err := loadTable(dir, "gitignore-templates.jsonc", schemas.GitignoreTemplates, &t.GitignoreTemplates); err != nil {
		return nil, err
	}
	return &t, nil
}

func loadTable(dir, filename, schemaName string, dest any) error {
	path := filepath.Join(dir, filename)

	var raw any
	if err := jsonc.DecodeFile(path, &raw); err != nil {
		return fmt.Errorf("config: load %s: %w", filename, err)
	}
	if err := schemas.Validate(schemaName, raw); err != nil {
		return fmt.Errorf("config: %s failed schema validation: %w", filename, err)
	}

	// Re-marshal the generically-decoded document into dest's concrete
	// type now that it has passed schema validation.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config: re-marshal %s: %w", filename, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("config: decode %s: %w", filename, err)
	}
	return nil
}

// LanguageOf returns the LanguageTag the Languages table maps ext to, or ""
// when ext is unmapped.
func (t *Tables) LanguageOf(ext string) model.LanguageTag {
	if tag, ok := t.Languages[ext]; ok {
		return tag
	}
	return ""
}

// Defaults returns the built-in table set used when no config directory
// has been initialized yet, covering the handful of languages docweave
// ships LSP server commands for out of the box.
func Defaults() *Tables {
	return &Tables{
		Languages: map[string]model.LanguageTag{
			".go":   "go",
			".py":   "python",
			".ts":   "typescript",
			".tsx":  "typescript",
			".js":   "javascript",
			".jsx":  "javascript",
			".rs":   "rust",
			".java": "java",
		},
		LSPServers: map[model.LanguageTag]ServerSpec{
			// gopls and rust-analyzer never surface import/use
			// declarations as documentSymbol entries, so ImportSymbolKind
			// is left at 0 (disabled) for go and rust.
			"go": {Command: "gopls", Args: []string{"serve"}, IncludeDeclarationSemantics: "excludesDeclaration"},
			"python": {
				Command:                     "pylsp",
				IncludeDeclarationSemantics: "mayIncludeDeclaration",
				// pylsp reports "import x"/"from x import y" as a Module
				// (raw kind 2) documentSymbol entry.
				ImportSymbolKind: 2,
				InitializationOptions: map[string]any{
					"plugins": map[string]any{"jedi": map[string]any{"environment": nil}},
				},
			},
			"typescript": {
				Command:                     "typescript-language-server",
				Args:                        []string{"--stdio"},
				IncludeDeclarationSemantics: "excludesDeclaration",
				// tsserver reports an ES import declaration as a Module
				// (raw kind 2) documentSymbol entry.
				ImportSymbolKind: 2,
			},
			"javascript": {
				Command:                     "typescript-language-server",
				Args:                        []string{"--stdio"},
				IncludeDeclarationSemantics: "excludesDeclaration",
				ImportSymbolKind:            2,
			},
			"rust": {Command: "rust-analyzer", IncludeDeclarationSemantics: "excludesDeclaration"},
			"java": {Command: "jdtls", IncludeDeclarationSemantics: "mayIncludeDeclaration"},
		},
		Ignore: IgnorePolicy{
			DirNames:     []string{".git", "node_modules", "vendor", "dist", "build", ".docweave"},
			ExtBlocklist: []string{".log", ".lock"},
		},
		GitignoreTemplates: map[model.LanguageTag]string{
			"go":         "Go",
			"python":     "Python",
			"typescript": "Node",
			"javascript": "Node",
			"rust":       "Rust",
			"java":       "Java",
		},
	}
}
