package api

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// StopWatcher watches the .loom/signals directory for an out-of-band stop
// request. A stop cannot abort an in-flight model call; the scheduler checks
// ShouldStop before each model call and each tool invocation, so a stop only
// prevents the next step from starting.
type StopWatcher struct {
	signalsDir string

	mu         sync.RWMutex
	stopSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStopWatcher creates a watcher rooted at workDir/.loom/signals.
// If the fsnotify watcher cannot be created, the StopWatcher degrades to
// stat-based polling in ShouldStop.
func NewStopWatcher(workDir string) (*StopWatcher, error) {
	signalsDir := filepath.Join(workDir, ".loom", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sw := &StopWatcher{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sw, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return sw, nil
	}
	sw.watcher = watcher
	go sw.watchSignals()

	return sw, nil
}

func (sw *StopWatcher) watchSignals() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == "stop" &&
				(event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				sw.mu.Lock()
				sw.stopSignal = true
				sw.mu.Unlock()
			}
		case <-sw.watcher.Errors:
			// Keep watching; the stat fallback still works.
		}
	}
}

// ShouldStop reports whether a stop has been requested, either via the
// watcher or by the stop file existing on disk (poll fallback).
func (sw *StopWatcher) ShouldStop() bool {
	sw.mu.RLock()
	stopped := sw.stopSignal
	sw.mu.RUnlock()
	if stopped {
		return true
	}

	if _, err := os.Stat(filepath.Join(sw.signalsDir, "stop")); err == nil {
		sw.mu.Lock()
		sw.stopSignal = true
		sw.mu.Unlock()
		return true
	}
	return false
}

// Clear removes the stop file and resets the signal for the next run.
func (sw *StopWatcher) Clear() {
	sw.mu.Lock()
	sw.stopSignal = false
	sw.mu.Unlock()
	os.Remove(filepath.Join(sw.signalsDir, "stop"))
}

// Close stops the watcher goroutine.
func (sw *StopWatcher) Close() {
	close(sw.done)
	if sw.watcher != nil {
		sw.watcher.Close()
	}
}
