package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestCatalog_AddDocument(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.AddDocument("testing/a.md", "testing", []string{"Jest", "pytest", ""}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	// Same document again must not duplicate entries.
	if err := c.AddDocument("testing/a.md", "testing", []string{"jest"}); err != nil {
		t.Fatalf("AddDocument (repeat) failed: %v", err)
	}

	snap := c.Snapshot()
	if got := snap.Categories["testing"]; !slices.Equal(got, []string{"testing/a.md"}) {
		t.Errorf("Categories[testing] = %v, want [testing/a.md]", got)
	}
	if got := snap.Keywords["jest"]; !slices.Equal(got, []string{"testing/a.md"}) {
		t.Errorf("Keywords[jest] = %v, want [testing/a.md] (lowercased, deduplicated)", got)
	}
	if got := snap.Keywords["pytest"]; !slices.Equal(got, []string{"testing/a.md"}) {
		t.Errorf("Keywords[pytest] = %v, want [testing/a.md]", got)
	}
	if _, ok := snap.Keywords[""]; ok {
		t.Error("empty keyword should be skipped")
	}
}

func TestCatalog_RemovePath(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.AddDocument("testing/a.md", "testing", []string{"shared"}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if err := c.AddDocument("debugging/b.md", "debugging", []string{"shared"}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	if err := c.RemovePath("testing/a.md"); err != nil {
		t.Fatalf("RemovePath failed: %v", err)
	}

	snap := c.Snapshot()
	if got := snap.Categories["testing"]; len(got) != 0 {
		t.Errorf("Categories[testing] = %v, want empty after removal", got)
	}
	if got := snap.Keywords["shared"]; !slices.Equal(got, []string{"debugging/b.md"}) {
		t.Errorf("Keywords[shared] = %v, want [debugging/b.md]", got)
	}
	if got := snap.Categories["debugging"]; !slices.Equal(got, []string{"debugging/b.md"}) {
		t.Errorf("Categories[debugging] = %v, want untouched", got)
	}
}

func TestCatalog_AddSession(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	entry := SessionEntry{
		SessionID:    "abc123",
		Started:      "20/08/2026, 10:15:00",
		MainCategory: "refactoring",
		Categories:   []string{"refactoring", "testing"},
		PromptCount:  4,
		Summary:      "4 conversations - Focus: refactoring",
	}
	if err := c.AddSession(entry, []string{"Python", "refactor"}); err != nil {
		t.Fatalf("AddSession failed: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Sessions) != 1 {
		t.Fatalf("Sessions = %d entries, want 1", len(snap.Sessions))
	}
	if snap.Sessions[0].SessionID != "abc123" {
		t.Errorf("SessionID = %q, want abc123", snap.Sessions[0].SessionID)
	}
	if got := snap.Keywords["python"]; !slices.Equal(got, []string{"abc123"}) {
		t.Errorf("Keywords[python] = %v, want [abc123]", got)
	}
}

func TestCatalog_PersistenceRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.AddDocument("general/x.md", "general", []string{"api"}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	// Reopen from the same directory.
	c2, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New (reopen) failed: %v", err)
	}
	snap := c2.Snapshot()
	if got := snap.Categories["general"]; !slices.Equal(got, []string{"general/x.md"}) {
		t.Errorf("reloaded Categories[general] = %v, want [general/x.md]", got)
	}
	if got := snap.Keywords["api"]; !slices.Equal(got, []string{"general/x.md"}) {
		t.Errorf("reloaded Keywords[api] = %v, want [general/x.md]", got)
	}
}

func TestCatalog_CorruptFileStartsEmpty(t *testing.T) {
	tmpDir := t.TempDir()

	indexPath := filepath.Join(tmpDir, "index.json")
	if err := os.WriteFile(indexPath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt index: %v", err)
	}

	c, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed on corrupt index: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Sessions) != 0 || len(snap.Categories) != 0 || len(snap.Keywords) != 0 {
		t.Errorf("corrupt index should yield empty catalog, got %+v", snap)
	}

	// Next mutation replaces the corrupt file with a valid one.
	if err := c.AddDocument("general/y.md", "general", nil); err != nil {
		t.Fatalf("AddDocument after corruption failed: %v", err)
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("failed to read rewritten index: %v", err)
	}
	var idx map[string]any
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Errorf("rewritten index is not valid JSON: %v", err)
	}
}

func TestCatalog_FileAlwaysParseable(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ops := []func() error{
		func() error { return c.AddDocument("testing/a.md", "testing", []string{"k1"}) },
		func() error { return c.AddDocument("general/b.md", "general", []string{"k1", "k2"}) },
		func() error { return c.RemovePath("testing/a.md") },
		func() error {
			return c.AddSession(SessionEntry{SessionID: "s1", MainCategory: "general"}, []string{"k3"})
		},
	}

	indexPath := filepath.Join(tmpDir, "index.json")
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d failed: %v", i, err)
		}
		data, err := os.ReadFile(indexPath)
		if err != nil {
			t.Fatalf("op %d: read failed: %v", i, err)
		}
		var idx indexData
		if err := json.Unmarshal(data, &idx); err != nil {
			t.Fatalf("op %d: index unparseable: %v", i, err)
		}
	}

	// No temp files left behind.
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "index.json" {
			t.Errorf("unexpected leftover file: %s", e.Name())
		}
	}
}
