package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogRenders(t *testing.T) {
	c := MustDefault()
	if len(c.Keys()) == 0 || !c.Has("errors.generic") {
		t.Fatalf("embedded catalog incomplete: %v", c.Keys())
	}
	got, err := c.Render("queue.cancelled", map[string]any{"Name": "앨리스"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "앨리스") {
		t.Fatalf("name not rendered: %q", got)
	}
}

func TestRenderMissingDataFails(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("queue.cancelled", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected unknown template error")
	}
	if got := c.Text("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("Text fallback = %q", got)
	}
	var nilCatalog *Catalog
	if got := nilCatalog.Text("errors.generic", nil, "x"); got != "x" {
		t.Fatalf("nil catalog must fall back, got %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("queue:\n  cancelled: \"bye {{.Name}}\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("queue.cancelled", map[string]any{"Name": "bob"})
	if err != nil || got != "bye bob" {
		t.Fatalf("override not applied: %q, %v", got, err)
	}
	if !c.Has("errors.generic") {
		t.Fatalf("defaults lost after override")
	}
}

func TestOverrideDirRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("help:\n  title: x\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestOverrideRejectsNonStringLeaves(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("help:\n  title: [1, 2]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for list value")
	}
}
