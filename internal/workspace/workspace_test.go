package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestWorkspace(t *testing.T, cfg Config) *Local {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	w, err := NewLocal(cfg)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func TestReadWriteRoundTrip(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	res := w.Write("src/main.go", "package main\n", false)
	if !res.Success {
		t.Fatalf("Write failed: %s", res.Error)
	}

	res = w.Read("src/main.go")
	if !res.Success {
		t.Fatalf("Read failed: %s", res.Error)
	}
	if res.Data != "package main\n" {
		t.Errorf("Read data = %q", res.Data)
	}
}

func TestReadMissingFile(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	res := w.Read("nope.go")
	if res.Success {
		t.Fatal("Read of missing file should fail")
	}
	if res.Error == "" {
		t.Error("failed Result should carry an error message")
	}
}

func TestWriteDeclined(t *testing.T) {
	w := newTestWorkspace(t, Config{
		Confirm: func(path, content string) bool { return false },
	})

	res := w.Write("a.txt", "hello", true)
	if res.Success {
		t.Fatal("declined write should report Success=false")
	}
	if !strings.Contains(res.Error, "declined") {
		t.Errorf("decline should read as a user decline, got %q", res.Error)
	}

	// The decline must not touch disk.
	if _, err := os.Stat(filepath.Join(w.Root(), "a.txt")); !os.IsNotExist(err) {
		t.Error("declined write created the file")
	}
}

func TestWriteWithoutConfirmFuncAutoApplies(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	res := w.Write("b.txt", "content", true)
	if !res.Success {
		t.Fatalf("write should auto-apply with no confirm surface: %s", res.Error)
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "file.go"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	w := newTestWorkspace(t, Config{Root: root})

	res := w.List(".")
	if !res.Success {
		t.Fatalf("List failed: %s", res.Error)
	}
	if !strings.Contains(res.Data, "d sub/") {
		t.Errorf("List missing directory entry: %q", res.Data)
	}
	if !strings.Contains(res.Data, "- file.go (1 bytes)") {
		t.Errorf("List missing file entry: %q", res.Data)
	}
}

func TestSearch(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"a.go":     "package a\nfunc Handler() {}\n",
		"b.go":     "package b\n",
		"notes.md": "the Handler is documented here\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	w := newTestWorkspace(t, Config{Root: root})

	res := w.Search("Handler", "")
	if !res.Success {
		t.Fatalf("Search failed: %s", res.Error)
	}
	if !strings.Contains(res.Data, "a.go:2:") {
		t.Errorf("Search missing a.go match: %q", res.Data)
	}
	if !strings.Contains(res.Data, "notes.md:1:") {
		t.Errorf("Search missing notes.md match: %q", res.Data)
	}

	// File pattern restricts matches to Go files.
	res = w.Search("Handler", "*.go")
	if strings.Contains(res.Data, "notes.md") {
		t.Errorf("file pattern should exclude notes.md: %q", res.Data)
	}
}

func TestSearchNoMatches(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	res := w.Search("nothing-here", "")
	if !res.Success {
		t.Fatalf("Search failed: %s", res.Error)
	}
	if res.Data != "No matches found" {
		t.Errorf("Data = %q", res.Data)
	}
}

func TestSearchInvalidRegexFallsBackToLiteral(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a [broken line\n"), 0644); err != nil {
		t.Fatal(err)
	}
	w := newTestWorkspace(t, Config{Root: root})

	res := w.Search("[broken", "")
	if !res.Success {
		t.Fatalf("Search failed: %s", res.Error)
	}
	if !strings.Contains(res.Data, "a.txt:1:") {
		t.Errorf("literal fallback missed match: %q", res.Data)
	}
}

func TestRunCommand(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	res := w.RunCommand(context.Background(), "echo hello")
	if !res.Success {
		t.Fatalf("RunCommand failed: %s", res.Error)
	}
	if strings.TrimSpace(res.Data) != "hello" {
		t.Errorf("output = %q", res.Data)
	}
}

func TestRunCommandFailureCarriesOutput(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	res := w.RunCommand(context.Background(), "echo oops >&2; exit 3")
	if res.Success {
		t.Fatal("failing command should report Success=false")
	}
	if !strings.Contains(res.Error, "oops") {
		t.Errorf("failure should carry command output: %q", res.Error)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	w := newTestWorkspace(t, Config{CommandTimeout: 100 * time.Millisecond})

	res := w.RunCommand(context.Background(), "sleep 5")
	if res.Success {
		t.Fatal("timed-out command should fail")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("error should mention timeout: %q", res.Error)
	}
}

func TestOutputTruncation(t *testing.T) {
	root := t.TempDir()
	big := strings.Repeat("x", 500)
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(big), 0644); err != nil {
		t.Fatal(err)
	}
	w := newTestWorkspace(t, Config{Root: root, MaxOutputBytes: 100})

	res := w.Read("big.txt")
	if !res.Success {
		t.Fatalf("Read failed: %s", res.Error)
	}
	if !strings.HasSuffix(res.Data, "(output truncated)") {
		t.Errorf("oversized read should be truncated: %q", res.Data[:50])
	}
}

func TestPendingChangeLifecycle(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	first := w.ProposeChange("x.txt", "one")
	second := w.ProposeChange("y.txt", "two")

	pending := w.ListPending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ID != first.ID {
		t.Error("ListPending should order by proposal time")
	}

	if res := w.Reject(first.ID); !res.Success {
		t.Fatalf("Reject failed: %s", res.Error)
	}
	if _, err := os.Stat(filepath.Join(w.Root(), "x.txt")); !os.IsNotExist(err) {
		t.Error("rejected change touched disk")
	}

	if res := w.Accept(second.ID); !res.Success {
		t.Fatalf("Accept failed: %s", res.Error)
	}
	content, err := os.ReadFile(filepath.Join(w.Root(), "y.txt"))
	if err != nil || string(content) != "two" {
		t.Errorf("accepted change not applied: %q, %v", content, err)
	}

	if len(w.ListPending()) != 0 {
		t.Error("registry should be empty after both decisions")
	}
}

func TestAcceptUnknownID(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	if res := w.Accept("missing"); res.Success {
		t.Error("Accept of unknown id should fail")
	}
	if res := w.Reject("missing"); res.Success {
		t.Error("Reject of unknown id should fail")
	}
}

func TestStaleChangeRefusesAccept(t *testing.T) {
	w := newTestWorkspace(t, Config{})

	change := w.ProposeChange("z.txt", "proposed")
	// Simulate the file changing on disk after the proposal.
	w.pending.markStale(w.resolvePath("z.txt"))

	res := w.Accept(change.ID)
	if res.Success {
		t.Fatal("stale change should refuse Accept")
	}
	if !strings.Contains(res.Error, "stale") {
		t.Errorf("error should mention staleness: %q", res.Error)
	}
}
