package atomicwrite

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFile_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "zone")
	if err := os.WriteFile(p, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFile(p, []byte("new\n"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new\n" {
		t.Fatalf("content = %q", got)
	}
	if perm := PermOf(p, 0); perm != 0o640 {
		t.Fatalf("perm = %v", perm)
	}

	// no quedan temporales
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestWriteFile_CreatesParentDirs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b", "eco.json")
	if err := WriteFile(p, []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestPermOf_Default(t *testing.T) {
	if got := PermOf(filepath.Join(t.TempDir(), "missing"), 0o600); got != 0o600 {
		t.Fatalf("got %v", got)
	}
}
