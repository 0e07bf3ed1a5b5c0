// Package schemas embeds and compiles the JSON Schemas that validate
// docweave's configuration tables (languages, lsp-servers, ignore,
// gitignore-templates) after jsonc has stripped comments.
package schemas

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.schema.json
var schemaFS embed.FS

const (
	Languages           = "languages"
	LSPServers          = "lsp-servers"
	Ignore              = "ignore"
	GitignoreTemplates  = "gitignore-templates"
)

var allSchemas = []string{Languages, LSPServers, Ignore, GitignoreTemplates}

var (
	compileOnce sync.Once
	compiler    *jsonschema.Compiler
	compileErr  error
)

func getCompiler() (*jsonschema.Compiler, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range allSchemas {
			data, err := schemaFS.ReadFile(schemaPath(name))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaURL(name), doc); err != nil {
				compileErr = fmt.Errorf("register schema %s: %w", name, err)
				return
			}
		}
		compiler = c
	})
	return compiler, compileErr
}

func schemaPath(name string) string {
	return fmt.Sprintf("%s.schema.json", name)
}

func schemaURL(name string) string {
	return fmt.Sprintf("mem://schemas/%s.schema.json", name)
}

// Compile returns the compiled schema for one of the named config tables.
func Compile(name string) (*jsonschema.Schema, error) {
	c, err := getCompiler()
	if err != nil {
		return nil, err
	}
	s, err := c.Compile(schemaURL(name))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return s, nil
}

// Validate checks doc (already comment-stripped JSON, decoded to
// interface{} via jsonschema.UnmarshalJSON) against the named schema.
func Validate(name string, doc any) error {
	s, err := Compile(name)
	if err != nil {
		return err
	}
	return s.Validate(doc)
}
