// Package graph provides a dependency graph for subtask scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/loomworks/loom/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the subtask graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of subtask dependencies.
// Subtasks are nodes, and edges represent "blocked by" relationships.
// Node order follows the order subtasks were handed to Build, so Ready
// returns candidates in plan order rather than map order.
type DependencyGraph struct {
	mu sync.RWMutex
	// order holds subtask IDs in insertion order.
	order []string
	// nodes maps subtask ID to the subtask itself.
	nodes map[string]*models.SubTask
	// edges maps subtask ID to IDs of subtasks it depends on.
	edges map[string][]string
	// settled tracks subtasks that have finished, successfully or not.
	// A failed subtask still unblocks its dependents; the worker decides
	// what to do with a failed dependency's result.
	settled map[string]bool
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:   make(map[string]*models.SubTask),
		edges:   make(map[string][]string),
		settled: make(map[string]bool),
	}
}

// Build constructs the dependency graph from a slice of subtasks.
// Returns an error if a dependency references an unknown subtask or a
// cycle is detected.
func (g *DependencyGraph) Build(subtasks []*models.SubTask) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// First pass: register all subtasks as nodes.
	for _, st := range subtasks {
		if _, exists := g.nodes[st.ID]; exists {
			return fmt.Errorf("duplicate subtask id %s", st.ID)
		}
		g.order = append(g.order, st.ID)
		g.nodes[st.ID] = st
		g.edges[st.ID] = nil
	}

	// Second pass: build edges from DependsOn fields.
	for _, st := range subtasks {
		for _, depID := range st.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("subtask %s depends on unknown subtask %s", st.ID, depID)
			}
			g.edges[st.ID] = append(g.edges[st.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked assumes the lock is held. Depth-first search with
// coloring to detect back edges.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// Ready returns the subtasks whose dependencies have all settled and
// that have not settled themselves, in the order they were built.
func (g *DependencyGraph) Ready() []*models.SubTask {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.SubTask
	for _, id := range g.order {
		if g.settled[id] {
			continue
		}
		blocked := false
		for _, depID := range g.edges[id] {
			if !g.settled[depID] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, g.nodes[id])
		}
	}
	return ready
}

// MarkSettled records that a subtask has finished. Failed subtasks are
// settled too, so their dependents become eligible.
func (g *DependencyGraph) MarkSettled(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settled[id] = true
}

// Settled reports whether every subtask in the graph has settled.
func (g *DependencyGraph) Settled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range g.order {
		if !g.settled[id] {
			return false
		}
	}
	return true
}

// Task returns the subtask for a given ID, or nil if not found.
func (g *DependencyGraph) Task(id string) *models.SubTask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of subtasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of subtasks the given subtask depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}
