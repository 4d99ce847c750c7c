package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHook_AppendsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "indexed.jsonl")
	h := New(path)
	fixed := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	for _, id := range []string{"doc-a", "doc-b"} {
		if err := h.DocumentIndexed(context.Background(), id); err != nil {
			t.Fatalf("DocumentIndexed(%s) failed: %v", id, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	defer f.Close()

	var got []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].DocumentID != "doc-a" || got[1].DocumentID != "doc-b" {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got[0].IndexedAt.Equal(fixed) {
		t.Errorf("expected indexed_at %v, got %v", fixed, got[0].IndexedAt)
	}
}

func TestHook_Name(t *testing.T) {
	if New("x").Name() != "manifest" {
		t.Error("expected name 'manifest'")
	}
}

func TestHook_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	h := New(filepath.Join(blocker, "indexed.jsonl"))
	if err := h.DocumentIndexed(context.Background(), "doc"); err == nil {
		t.Error("expected error when parent is a file")
	}
}
