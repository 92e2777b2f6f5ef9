// Package models defines the shared data types for a Loom run.
package models

import "encoding/json"

// SubTaskType classifies a unit of work by the role prompt it runs under.
type SubTaskType string

const (
	// SubTaskAnalysis examines existing code without changing it.
	SubTaskAnalysis SubTaskType = "analysis"
	// SubTaskGeneration writes or modifies code.
	SubTaskGeneration SubTaskType = "generation"
	// SubTaskTest exercises generated code and reports findings.
	SubTaskTest SubTaskType = "test"
)

// Valid returns true if the type is a known value.
func (t SubTaskType) Valid() bool {
	switch t {
	case SubTaskAnalysis, SubTaskGeneration, SubTaskTest:
		return true
	default:
		return false
	}
}

// Task is the root user request. It is created once per invocation and is
// immutable except for RequiresGeneration, which the planner may set exactly
// once when analysis must be chained into generation.
type Task struct {
	// Query is the natural-language request text.
	Query string `json:"query"`
	// Context is optional prior workspace context supplied by the caller.
	Context string `json:"context,omitempty"`
	// RequiresGeneration is set by the planner when the analysis result
	// must feed a follow-up generation subtask.
	RequiresGeneration bool `json:"requires_generation,omitempty"`
}

// SubTask is one unit of executable work within a run.
type SubTask struct {
	// ID is unique within a run.
	ID string `json:"id"`
	// Type selects the role prompt (analysis, generation, test).
	Type SubTaskType `json:"type"`
	// Description is the human-readable summary shown in progress output.
	Description string `json:"description"`
	// Task is the instruction text sent to the model.
	Task string `json:"task"`
	// Context is assembled from dependency results immediately before
	// execution; otherwise it carries the planner-assigned static context.
	Context string `json:"context,omitempty"`
	// DependsOn lists subtask IDs that must settle before this one runs.
	DependsOn []string `json:"dependsOn,omitempty"`
}

// WorkerResult is the outcome of one subtask execution. Results are keyed by
// subtask ID in the run state and are never overwritten.
type WorkerResult struct {
	// Success indicates the subtask produced a usable result.
	Success bool `json:"success"`
	// Result is the assistant text. Empty on failure.
	Result string `json:"result,omitempty"`
	// Error holds a readable failure message when Success is false.
	Error string `json:"error,omitempty"`
	// ToolsUsed records every tool invocation in call order. Duplicates
	// are allowed; the list reflects call history, not a set.
	ToolsUsed []string `json:"tools_used,omitempty"`
}

// ToolCall is a structured tool request returned by the model. It lives only
// inside one subtask execution.
type ToolCall struct {
	// ID correlates the call with its result message.
	ID string `json:"id"`
	// Name is the tool to invoke.
	Name string `json:"name"`
	// Arguments is the raw JSON argument object.
	Arguments json.RawMessage `json:"arguments"`
}
