package workspace

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// changeWatcher marks pending changes stale when their target file is
// modified on disk by something other than the workspace itself.
type changeWatcher struct {
	registry *PendingRegistry
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]bool // directories already added to the watcher

	done chan struct{}
}

func newChangeWatcher(registry *PendingRegistry) (*changeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cw := &changeWatcher{
		registry: registry,
		watcher:  watcher,
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	go cw.loop()
	return cw, nil
}

// Track starts watching the directory containing the given resolved path.
// fsnotify is not recursive, so directories are added lazily per proposal.
func (cw *changeWatcher) Track(resolvedPath string) {
	dir := filepath.Dir(resolvedPath)
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.watched[dir] {
		return
	}
	if err := cw.watcher.Add(dir); err == nil {
		cw.watched[dir] = true
	}
}

func (cw *changeWatcher) loop() {
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				cw.registry.markStale(event.Name)
			}
		case <-cw.watcher.Errors:
			// Staleness detection is best-effort.
		}
	}
}

func (cw *changeWatcher) Close() {
	close(cw.done)
	cw.watcher.Close()
}
