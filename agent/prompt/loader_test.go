package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmbeddedPromptsNotEmpty(t *testing.T) {
	t.Parallel()

	if Sales() == "" {
		t.Fatal("sales prompt must not be empty")
	}
	if SQLAgent() == "" {
		t.Fatal("sql agent prompt must not be empty")
	}
}

func TestLoaderFallsBackWithoutPath(t *testing.T) {
	t.Parallel()

	l := NewLoader("", "fallback text")
	if got := l.Text(); got != "fallback text" {
		t.Fatalf("Text() = %q, want fallback", got)
	}
}

func TestLoaderFallsBackOnMissingFile(t *testing.T) {
	t.Parallel()

	l := NewLoader(filepath.Join(t.TempDir(), "absent.txt"), "fallback text")
	if got := l.Text(); got != "fallback text" {
		t.Fatalf("Text() = %q, want fallback", got)
	}
}

func TestLoaderReadsOverrideAndPicksUpChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("first version\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	l := NewLoader(path, "fallback text")
	if got := l.Text(); got != "first version" {
		t.Fatalf("Text() = %q, want first version", got)
	}

	if err := os.WriteFile(path, []byte("second version\n"), 0o644); err != nil {
		t.Fatalf("rewrite override: %v", err)
	}
	// The reload check compares mtimes; nudge it forward for coarse
	// filesystem clocks.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if got := l.Text(); got != "second version" {
		t.Fatalf("Text() = %q, want second version", got)
	}
}

func TestLoaderKeepsCacheWhenFileDisappears(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("cached version"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	l := NewLoader(path, "fallback text")
	if got := l.Text(); got != "cached version" {
		t.Fatalf("Text() = %q, want cached version", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove override: %v", err)
	}
	if got := l.Text(); got != "cached version" {
		t.Fatalf("Text() = %q, want cached version after removal", got)
	}
}
