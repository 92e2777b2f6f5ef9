// Package workspace implements the file-system collaborator that tools run
// against. All operations return a uniform Result envelope: user declines
// and ordinary failures are data, never panics or raw errors, so the tool
// layer can hand them back to the model as-is.
package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Result is the uniform envelope for every workspace operation.
type Result struct {
	// Success is false for declines and failures alike.
	Success bool
	// Data holds the operation output when successful.
	Data string
	// Error holds a readable message when Success is false.
	Error string
}

// ok and fail are small constructors to keep call sites terse.
func ok(data string) Result { return Result{Success: true, Data: data} }

func fail(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Workspace is the capability surface the tool layer consumes.
// Writes can be declined by the user; a decline manifests as Success=false,
// not as a systemic error.
type Workspace interface {
	Read(path string) Result
	Write(path, content string, needsConfirmation bool) Result
	List(path string) Result
	Search(query, filePattern string) Result
	RunCommand(ctx context.Context, command string) Result
}

// ConfirmFunc decides whether a proposed write may be applied.
type ConfirmFunc func(path, content string) bool

// Local is the default Workspace backed by a directory on disk.
type Local struct {
	root string
	// confirm gates writes that need confirmation. Nil means no
	// interactive surface is attached and confirmed writes auto-apply.
	confirm ConfirmFunc
	// cmdTimeout bounds RunCommand execution.
	cmdTimeout time.Duration
	// maxOutput truncates oversized tool output before it reaches the
	// model transcript.
	maxOutput int

	pending *PendingRegistry
	watcher *changeWatcher
}

// Config holds construction options for a Local workspace.
type Config struct {
	// Root is the workspace directory. Required.
	Root string
	// Confirm gates confirmed writes. Optional.
	Confirm ConfirmFunc
	// CommandTimeout bounds RunCommand. Defaults to 2 minutes.
	CommandTimeout time.Duration
	// MaxOutputBytes truncates tool output. Defaults to 30000.
	MaxOutputBytes int
	// Watch enables the fsnotify staleness watcher for pending changes.
	Watch bool
}

// NewLocal creates a workspace rooted at cfg.Root.
func NewLocal(cfg Config) (*Local, error) {
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", cfg.Root)
	}

	timeout := cfg.CommandTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	maxOutput := cfg.MaxOutputBytes
	if maxOutput == 0 {
		maxOutput = 30000
	}

	w := &Local{
		root:       cfg.Root,
		confirm:    cfg.Confirm,
		cmdTimeout: timeout,
		maxOutput:  maxOutput,
		pending:    NewPendingRegistry(),
	}

	if cfg.Watch {
		watcher, err := newChangeWatcher(w.pending)
		if err == nil {
			w.watcher = watcher
		}
		// Watcher failure is non-fatal; staleness detection degrades.
	}

	return w, nil
}

// Close releases the staleness watcher, if any.
func (w *Local) Close() {
	if w.watcher != nil {
		w.watcher.Close()
	}
}

// Root returns the workspace root directory.
func (w *Local) Root() string { return w.root }

// Read returns the contents of a file.
func (w *Local) Read(path string) Result {
	content, err := os.ReadFile(w.resolvePath(path))
	if err != nil {
		return fail("failed to read file: %v", err)
	}
	return ok(w.truncate(string(content)))
}

// Write applies a file write, routing it through the pending-change
// registry. With needsConfirmation set and a confirm func attached, the
// user may decline; the decline is reported as ordinary result data.
func (w *Local) Write(path, content string, needsConfirmation bool) Result {
	change := w.ProposeChange(path, content)

	if needsConfirmation && w.confirm != nil {
		if !w.confirm(path, content) {
			w.Reject(change.ID)
			return fail("write to %s declined by user", path)
		}
	}

	return w.Accept(change.ID)
}

// List returns the entries of a directory.
func (w *Local) List(path string) Result {
	entries, err := os.ReadDir(w.resolvePath(path))
	if err != nil {
		return fail("failed to read directory: %v", err)
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&b, "d %s/\n", entry.Name())
			continue
		}
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(&b, "? %s\n", entry.Name())
			continue
		}
		fmt.Fprintf(&b, "- %s (%d bytes)\n", entry.Name(), info.Size())
	}
	return ok(b.String())
}

// maxSearchMatches caps Search output so a loose pattern cannot flood the
// model transcript.
const maxSearchMatches = 200

// Search scans workspace files for a regex pattern. filePattern optionally
// restricts the scan to base names matching a glob (e.g. "*.go").
// Patterns that fail to compile are retried as literal text.
func (w *Local) Search(query, filePattern string) Result {
	if query == "" {
		return fail("search query is empty")
	}

	re, err := regexp.Compile(query)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(query))
	}

	var b strings.Builder
	matches := 0
	walkErr := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries.
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != w.root {
				return filepath.SkipDir
			}
			return nil
		}
		if filePattern != "" {
			if matched, _ := filepath.Match(filePattern, d.Name()); !matched {
				return nil
			}
		}

		content, err := os.ReadFile(path)
		if err != nil || !isText(content) {
			return nil
		}

		rel, _ := filepath.Rel(w.root, path)
		for i, line := range strings.Split(string(content), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d: %s\n", rel, i+1, line)
				matches++
				if matches >= maxSearchMatches {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return fail("search failed: %v", walkErr)
	}

	if matches == 0 {
		return ok("No matches found")
	}
	out := b.String()
	if matches >= maxSearchMatches {
		out += "... (match limit reached)\n"
	}
	return ok(w.truncate(out))
}

// RunCommand executes a shell command in the workspace root.
// A non-zero exit is a failed Result carrying the combined output, so the
// model can read compiler errors and test failures.
func (w *Local) RunCommand(ctx context.Context, command string) Result {
	if strings.TrimSpace(command) == "" {
		return fail("command is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, w.cmdTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = w.root

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fail("command timed out after %v:\n%s", w.cmdTimeout, w.truncate(string(output)))
		}
		return fail("%s\nError: %v", w.truncate(string(output)), err)
	}

	return ok(w.truncate(string(output)))
}

func (w *Local) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.root, path)
}

func (w *Local) truncate(s string) string {
	if len(s) > w.maxOutput {
		return s[:w.maxOutput] + "\n... (output truncated)"
	}
	return s
}

// isText reports whether content looks like a text file (no NUL bytes in
// the first KB).
func isText(content []byte) bool {
	probe := content
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	for _, b := range probe {
		if b == 0 {
			return false
		}
	}
	return true
}
