// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt holds the name-keyed prompt templates used by the parameter
// extractor and the survey table builder. A Catalog is an explicit object:
// each batch owns one and registers its column templates before extraction
// begins.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"go.yaml.in/yaml/v3"
)

// Template is a parsed prompt with named placeholders.
type Template struct {
	Name string
	Text string

	tmpl *template.Template
}

// Execute renders the template with data.
func (t *Template) Execute(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %q: %w", t.Name, err)
	}
	return buf.String(), nil
}

// Catalog is a concurrency-safe registry of prompt templates.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*Template
}

var funcs = template.FuncMap{
	"yearsBack": yearsBack,
}

// NewCatalog returns a catalog holding the built-in templates.
func NewCatalog() *Catalog {
	c := &Catalog{entries: make(map[string]*Template)}
	for name, text := range builtins {
		if err := c.Register(name, text); err != nil {
			panic(err)
		}
	}
	return c
}

// Register parses text and stores it under name, replacing any previous entry.
func (c *Catalog) Register(name, text string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("prompt name is empty")
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("parsing prompt %q: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &Template{Name: name, Text: text, tmpl: tmpl}
	return nil
}

// IsBuiltin reports whether name is one of the catalog's own prompts.
func IsBuiltin(name string) bool {
	_, ok := builtins[strings.TrimSpace(name)]
	return ok
}

// RegisterColumn makes column available for lookup. If a custom template was
// already registered under the column name it is kept; otherwise the column
// gets the generic extraction template, with the column name as its
// instruction. Built-in prompt names cannot be columns.
func (c *Catalog) RegisterColumn(column string) error {
	if IsBuiltin(column) {
		return fmt.Errorf("column %q is a reserved prompt name", column)
	}
	if c.Has(column) {
		return nil
	}
	return c.Register(column, c.Lookup(ColumnExtraction).Text)
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// Lookup returns the template registered under name. Looking up an
// unregistered name is a programming error and panics: every column must be
// registered before extraction starts.
func (c *Catalog) Lookup(name string) *Template {
	c.mu.RLock()
	t, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("prompt: no template registered for %q", name))
	}
	return t
}

// Render looks up name and executes it with data.
func (c *Catalog) Render(name string, data any) (string, error) {
	return c.Lookup(name).Execute(data)
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadFile registers every entry of a YAML mapping of name to template text.
// Entries override built-ins of the same name.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading prompt file: %w", err)
	}
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing prompt file %s: %w", path, err)
	}
	for name, text := range entries {
		if err := c.Register(name, text); err != nil {
			return err
		}
	}
	return nil
}

// ColumnInstruction is the default instruction derived from a column name.
func ColumnInstruction(column string) string {
	return fmt.Sprintf("Extract the %s from this paper body.", column)
}

// yearsBack renders the n years ending at current, newest first, in the
// bracketed list form the extractor parses (e.g. "[2024, 2023, 2022]").
func yearsBack(current, n int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, strconv.Itoa(current-i))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
