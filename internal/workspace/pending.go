package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingChange is a proposed file write awaiting a decision.
type PendingChange struct {
	// ID identifies the proposal.
	ID string
	// Path is the workspace-relative or absolute target path.
	Path string
	// Content is the full proposed file content.
	Content string
	// ProposedAt is when the change was proposed.
	ProposedAt time.Time
	// Stale is set when the target file changed on disk after the
	// proposal was made. Stale changes refuse Accept.
	Stale bool

	// resolved is the absolute target path, used by the staleness watcher.
	resolved string
}

// PendingRegistry owns all pending file changes. It is the only mutation
// surface for proposed writes; nothing else in the system holds shared
// change state.
type PendingRegistry struct {
	mu      sync.Mutex
	changes map[string]*PendingChange
}

// NewPendingRegistry creates an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{changes: make(map[string]*PendingChange)}
}

// ProposeChange registers a proposed write and returns the proposal.
func (w *Local) ProposeChange(path, content string) *PendingChange {
	change := &PendingChange{
		ID:         uuid.New().String(),
		Path:       path,
		Content:    content,
		ProposedAt: time.Now(),
		resolved:   w.resolvePath(path),
	}
	w.pending.add(change)
	if w.watcher != nil {
		w.watcher.Track(w.resolvePath(path))
	}
	return change
}

// Accept applies a pending change to disk and removes it from the registry.
// Stale proposals are rejected instead of applied.
func (w *Local) Accept(id string) Result {
	change, found := w.pending.take(id)
	if !found {
		return fail("no pending change with id %s", id)
	}
	if change.Stale {
		return fail("pending change for %s is stale: file was modified after the proposal", change.Path)
	}

	target := w.resolvePath(change.Path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fail("failed to create directory: %v", err)
	}
	if err := os.WriteFile(target, []byte(change.Content), 0644); err != nil {
		return fail("failed to write file: %v", err)
	}

	return ok(fmt.Sprintf("Successfully wrote %d bytes to %s", len(change.Content), change.Path))
}

// Reject discards a pending change without touching disk.
func (w *Local) Reject(id string) Result {
	if _, found := w.pending.take(id); !found {
		return fail("no pending change with id %s", id)
	}
	return ok("change rejected")
}

// ListPending returns pending changes ordered by proposal time.
func (w *Local) ListPending() []*PendingChange {
	return w.pending.list()
}

func (r *PendingRegistry) add(change *PendingChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes[change.ID] = change
}

// take removes and returns a change by ID.
func (r *PendingRegistry) take(id string) (*PendingChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	change, found := r.changes[id]
	if found {
		delete(r.changes, id)
	}
	return change, found
}

func (r *PendingRegistry) list() []*PendingChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PendingChange, 0, len(r.changes))
	for _, change := range r.changes {
		out = append(out, change)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProposedAt.Before(out[j].ProposedAt)
	})
	return out
}

// markStale flags every pending change targeting the given resolved path.
func (r *PendingRegistry) markStale(resolvedPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, change := range r.changes {
		if change.resolved == resolvedPath {
			change.Stale = true
		}
	}
}
