// Package orchestrator routes a user query through planning, subtask
// execution, and synthesis, and owns the run's mutable state.
package orchestrator

import (
	"time"
)

// EventType represents the type of run event.
type EventType string

const (
	// EventRunStarted indicates a run has begun.
	EventRunStarted EventType = "run_started"
	// EventNodeEntered indicates the scheduler entered a routing step.
	EventNodeEntered EventType = "node_entered"
	// EventSubtaskStarted indicates a subtask began executing.
	EventSubtaskStarted EventType = "subtask_started"
	// EventSubtaskFinished indicates a subtask finished, successfully or not.
	EventSubtaskFinished EventType = "subtask_finished"
	// EventToolInvoked indicates the model invoked a workspace tool.
	EventToolInvoked EventType = "tool_invoked"
	// EventSynthesisStarted indicates result merging has begun.
	EventSynthesisStarted EventType = "synthesis_started"
	// EventRunFinished indicates the run reached a terminal state.
	EventRunFinished EventType = "run_finished"
)

// Event is a progress update emitted during a run. These events feed the
// CLI's status output.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// SubtaskID is the ID of the related subtask, if applicable.
	SubtaskID string
	// Message provides free-text context, e.g. "Executing: Analysis...".
	Message string
	// Err carries a readable error for failure events.
	Err string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Tokens is the cumulative token count (run_finished only).
	Tokens int64
	// Cost is the cumulative estimated cost in USD (run_finished only).
	Cost float64
	// Duration is the elapsed run time (run_finished only).
	Duration time.Duration
}
