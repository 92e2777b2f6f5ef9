// Package worker executes one subtask: a bounded model-call loop where the
// model may invoke workspace tools between turns until it produces a final
// answer.
package worker

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/internal/api"
	"github.com/loomworks/loom/internal/tools"
	"github.com/loomworks/loom/pkg/models"
)

// DefaultMaxRounds bounds the tool-call loop. An LLM that never stops
// calling tools must not run unbounded.
const DefaultMaxRounds = 10

// StopFunc reports whether execution should halt before the next model or
// tool call. In-flight calls are never aborted; the check only prevents
// the next step from starting.
type StopFunc func() bool

// Config holds construction options for a Worker.
type Config struct {
	LLM     api.Messenger
	Invoker *tools.Invoker
	// MaxRounds caps model-call rounds per subtask. Defaults to
	// DefaultMaxRounds.
	MaxRounds int
	// Stop is an optional halt check. Optional.
	Stop StopFunc
	// OnToolCall observes each tool invocation. Optional.
	OnToolCall func(name string)
}

// Worker runs subtasks against the model with the workspace tool set.
type Worker struct {
	llm        api.Messenger
	invoker    *tools.Invoker
	maxRounds  int
	stop       StopFunc
	onToolCall func(name string)
}

// New creates a worker from cfg.
func New(cfg Config) *Worker {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Worker{
		llm:        cfg.LLM,
		invoker:    cfg.Invoker,
		maxRounds:  maxRounds,
		stop:       cfg.Stop,
		onToolCall: cfg.OnToolCall,
	}
}

// Execute runs one subtask to completion. Failures of any kind come back
// as a WorkerResult with Success=false; nothing escapes as a Go error, so
// the scheduler's control flow is never interrupted mid-run.
func (w *Worker) Execute(ctx context.Context, subtask *models.SubTask) *models.WorkerResult {
	if subtask == nil {
		return &models.WorkerResult{Error: "no subtask to execute"}
	}

	messages := []api.Message{}
	if subtask.Context != "" {
		messages = append(messages, api.Message{Role: api.RoleUser, Text: subtask.Context})
	}
	messages = append(messages, api.Message{Role: api.RoleUser, Text: subtask.Task})

	var toolsUsed []string

	for round := 0; round < w.maxRounds; round++ {
		if err := w.halted(ctx); err != nil {
			return &models.WorkerResult{Error: err.Error(), ToolsUsed: toolsUsed}
		}

		reply, err := w.llm.Send(ctx, api.Request{
			System:   systemPrompt(subtask.Type),
			Messages: messages,
			Tools:    tools.Definitions(),
		})
		if err != nil {
			return &models.WorkerResult{
				Error:     fmt.Sprintf("model call failed: %v", err),
				ToolsUsed: toolsUsed,
			}
		}

		messages = append(messages, api.Message{
			Role:      api.RoleAssistant,
			Text:      reply.Text,
			ToolCalls: reply.ToolCalls,
		})

		if len(reply.ToolCalls) == 0 {
			return &models.WorkerResult{
				Success:   true,
				Result:    reply.Text,
				ToolsUsed: toolsUsed,
			}
		}

		// Tool calls run sequentially in the order the model requested
		// them. A failure inside one call becomes error content for the
		// model; it never aborts the subtask.
		outcomes := make([]api.ToolOutcome, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			if err := w.halted(ctx); err != nil {
				return &models.WorkerResult{Error: err.Error(), ToolsUsed: toolsUsed}
			}

			res := w.invoker.Invoke(ctx, call.Name, call.Arguments)
			if tools.Known(call.Name) {
				toolsUsed = append(toolsUsed, call.Name)
				if w.onToolCall != nil {
					w.onToolCall(call.Name)
				}
			}
			outcomes = append(outcomes, api.ToolOutcome{
				ToolCallID: call.ID,
				Content:    res.Content,
				IsError:    res.IsError,
			})
		}
		messages = append(messages, api.Message{Role: api.RoleUser, ToolOutcomes: outcomes})
	}

	return &models.WorkerResult{
		Error:     fmt.Sprintf("maximum tool calls exceeded (%d rounds)", w.maxRounds),
		ToolsUsed: toolsUsed,
	}
}

// halted checks the cancellation surfaces honored between suspension
// points.
func (w *Worker) halted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("execution cancelled: %w", err)
	}
	if w.stop != nil && w.stop() {
		return fmt.Errorf("execution stopped by user")
	}
	return nil
}
