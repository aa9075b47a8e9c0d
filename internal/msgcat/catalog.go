// Package msgcat holds the bot's user-facing message templates.
package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.ko.yaml
var defaultFiles embed.FS

// Catalog loads string templates from embedded defaults and an optional override directory.
// Values are rendered with text/template (missing keys cause errors).
type Catalog struct {
	mu     sync.RWMutex
	data   map[string]string             // flattened dot-keys → template text
	parsed map[string]*template.Template // lazily parsed
}

// New loads the embedded default messages and then applies overrides from dir if provided.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{data: make(map[string]string), parsed: make(map[string]*template.Template)}

	raw, err := fs.ReadFile(defaultFiles, "messages.ko.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	if err := c.applyYAML(raw); err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustDefault returns the embedded catalog; it panics only if the embedded
// file is broken.
func MustDefault() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read template dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	seen := make(map[string]string) // key -> filename
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := parseYAMLToFlat(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range flat {
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
			}
			seen[k] = name
		}
		c.merge(flat)
	}
	return nil
}

func parseYAMLToFlat(b []byte) (map[string]string, error) {
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	flat := make(map[string]string)
	if err := flattenStrings(m, "", flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func (c *Catalog) applyYAML(b []byte) error {
	flat, err := parseYAMLToFlat(b)
	if err != nil {
		return err
	}
	c.merge(flat)
	return nil
}

func (c *Catalog) merge(flat map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range flat {
		c.data[k] = v
		delete(c.parsed, k)
	}
}

func flattenStrings(src any, prefix string, out map[string]string) error {
	switch v := src.(type) {
	case map[string]any:
		for k, vv := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flattenStrings(vv, key, out); err != nil {
				return err
			}
		}
		return nil
	case string:
		if prefix == "" {
			return errors.New("string value without key prefix")
		}
		out[prefix] = v
		return nil
	case nil:
		return nil
	default:
		// only string leaves
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
}

// Has reports whether key has a non-empty template.
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.TrimSpace(c.data[strings.TrimSpace(key)]) != ""
}

// Keys lists all loaded keys in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render executes a template by key with the provided data.
// Missing keys cause errors; caller should provide safe fallback.
func (c *Catalog) Render(key string, data any) (string, error) {
	key = strings.TrimSpace(key)
	t, err := c.template(key)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text renders key and falls back to fallback on any error.
func (c *Catalog) Text(key string, data any, fallback string) string {
	if c == nil {
		return fallback
	}
	s, err := c.Render(key, data)
	if err != nil {
		return fallback
	}
	return s
}

func (c *Catalog) template(key string) (*template.Template, error) {
	c.mu.RLock()
	t, ok := c.parsed[key]
	tpl := c.data[key]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}
	if strings.TrimSpace(tpl) == "" {
		return nil, fmt.Errorf("template not found: %s", key)
	}
	t, err := template.New(key).Option("missingkey=error").Parse(tpl)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.parsed[key] = t
	c.mu.Unlock()
	return t, nil
}
