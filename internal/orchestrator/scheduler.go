package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/loomworks/loom/internal/api"
	"github.com/loomworks/loom/internal/graph"
	"github.com/loomworks/loom/internal/planner"
	"github.com/loomworks/loom/internal/synthesis"
	"github.com/loomworks/loom/internal/worker"
	"github.com/loomworks/loom/pkg/models"
)

// IrrelevantResponse is returned when the planner decides the request is
// not a coding task.
const IrrelevantResponse = "This request does not appear to be a coding task, so there is nothing for me to do here."

// Outcome is the terminal result of one run.
type Outcome struct {
	Success  bool
	Response string
	Error    string
}

// Config holds the scheduler's collaborators.
type Config struct {
	Planner     *planner.Planner
	Worker      *worker.Worker
	Synthesizer *synthesis.Synthesizer
	// Emitter receives progress events. Optional.
	Emitter *EventEmitter
	// Logger receives diagnostic lines. Optional.
	Logger *DebugLogger
	// Tracker supplies token accounting for the run summary. Optional.
	Tracker *api.TokenTracker
}

// Scheduler owns run control flow: it asks the planner for a routing
// decision, drives subtasks through the worker in dependency order, and
// hands collected results to the synthesizer. One run at a time.
type Scheduler struct {
	planner     *planner.Planner
	worker      *worker.Worker
	synthesizer *synthesis.Synthesizer
	emitter     *EventEmitter
	logger      *DebugLogger
	tracker     *api.TokenTracker

	isExecuting atomic.Bool
}

// New creates a scheduler from cfg.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger()
	}
	return &Scheduler{
		planner:     cfg.Planner,
		worker:      cfg.Worker,
		synthesizer: cfg.Synthesizer,
		emitter:     cfg.Emitter,
		logger:      logger,
		tracker:     cfg.Tracker,
	}
}

// Execute runs one query to a terminal outcome. Concurrent invocations
// are rejected, not queued; failures always come back as a readable
// Outcome, never a panic or a bare error.
func (s *Scheduler) Execute(ctx context.Context, query string) Outcome {
	if !s.isExecuting.CompareAndSwap(false, true) {
		return Outcome{Error: "already executing a task"}
	}
	defer s.isExecuting.Store(false)

	if strings.TrimSpace(query) == "" {
		return Outcome{Error: "query is empty"}
	}

	start := time.Now()
	s.emit(Event{Type: EventRunStarted, Message: query})
	s.logger.Log("run started: %q", query)

	state := NewRunState(query)
	outcome := s.run(ctx, state)

	finished := Event{
		Type:     EventRunFinished,
		Message:  outcome.Response,
		Err:      outcome.Error,
		Duration: time.Since(start),
	}
	if s.tracker != nil {
		in, out := s.tracker.Total()
		finished.Tokens = in + out
		finished.Cost = s.tracker.Cost()
	}
	s.emit(finished)
	s.logger.Log("run finished: success=%v err=%q duration=%s", outcome.Success, outcome.Error, finished.Duration)

	return outcome
}

// run drives the routing loop. Every node sets state.NextStep; the loop
// ends when it reaches StepEnd.
func (s *Scheduler) run(ctx context.Context, state *RunState) Outcome {
	for state.NextStep != StepEnd {
		s.emit(Event{Type: EventNodeEntered, Message: fmt.Sprintf("Executing: %s...", state.NextStep)})
		s.logger.Log("entering step %s", state.NextStep)

		switch state.NextStep {
		case StepPlan:
			s.runPlan(ctx, state)
		case StepAnalysis:
			s.runFixedNode(ctx, state, models.SubTaskAnalysis)
		case StepGeneration:
			s.runFixedNode(ctx, state, models.SubTaskGeneration)
		case StepTest:
			s.runFixedNode(ctx, state, models.SubTaskTest)
		case StepSelect:
			s.runSelect(ctx, state)
		case StepSynthesize:
			return s.runSynthesize(ctx, state)
		default:
			state.Fail(fmt.Sprintf("unknown routing step %q", state.NextStep))
			state.NextStep = StepSynthesize
		}
	}

	// Only the irrelevant path reaches End without synthesis.
	return Outcome{Success: true, Response: state.FinalResult}
}

// runPlan asks the planner for the routing decision and picks the path:
// a subtask list routes through Select; a classification token routes
// through the fixed single-subtask graph.
func (s *Scheduler) runPlan(ctx context.Context, state *RunState) {
	plan, err := s.planner.Plan(ctx, state.Task.Query)
	if err != nil {
		// Planning errors are terminal: no partial synthesis is
		// attempted over a plan that never existed.
		state.Fail(fmt.Sprintf("planning failed: %v", err))
		state.NextStep = StepSynthesize
		return
	}

	if plan.Decomposed() {
		state.Plan = plan.Summary
		state.Subtasks = plan.Subtasks
		state.NextStep = StepSelect
		s.logger.Log("plan: %d subtasks", len(plan.Subtasks))
		return
	}

	s.logger.Log("classification: %s", plan.Outcome)
	switch plan.Outcome {
	case planner.OutcomeAnalysis:
		state.NextStep = StepAnalysis
	case planner.OutcomeGeneration:
		state.NextStep = StepGeneration
	case planner.OutcomeAnalysisWithGeneration:
		state.Task.RequiresGeneration = true
		state.NextStep = StepAnalysis
	default:
		// Unrecognized tokens already degraded to irrelevant inside the
		// planner; both land here and end the run without a result.
		state.FinalResult = IrrelevantResponse
		state.NextStep = StepEnd
	}
}

// runFixedNode executes one single-subtask node on the classification
// path. Edges are fixed: Generation always flows into Test, Test into
// Synthesize; Analysis flows into Generation only when the plan asked
// for it. A failed node routes straight to Synthesize.
func (s *Scheduler) runFixedNode(ctx context.Context, state *RunState, typ models.SubTaskType) {
	subtask := &models.SubTask{
		ID:      string(typ),
		Type:    typ,
		Task:    state.Task.Query,
		Context: s.fixedNodeContext(state, typ),
	}

	result := s.executeSubtask(ctx, state, subtask, titleFor(typ))
	if !result.Success {
		state.Fail(fmt.Sprintf("%s failed: %s", titleFor(typ), result.Error))
		state.NextStep = StepSynthesize
		return
	}

	switch typ {
	case models.SubTaskAnalysis:
		if state.Task.RequiresGeneration {
			state.NextStep = StepGeneration
		} else {
			state.NextStep = StepSynthesize
		}
	case models.SubTaskGeneration:
		state.NextStep = StepTest
	default:
		state.NextStep = StepSynthesize
	}
}

// fixedNodeContext threads the previous fixed node's result into the
// next one, in the same shape dependency scheduling uses.
func (s *Scheduler) fixedNodeContext(state *RunState, typ models.SubTaskType) string {
	var from models.SubTaskType
	switch typ {
	case models.SubTaskGeneration:
		from = models.SubTaskAnalysis
	case models.SubTaskTest:
		from = models.SubTaskGeneration
	default:
		return state.Task.Context
	}

	var b strings.Builder
	if prev := state.Result(string(from)); prev != nil && prev.Success {
		fmt.Fprintf(&b, "Result from %s:\n%s\n\n", from, prev.Result)
	}
	b.WriteString(state.Task.Context)
	return b.String()
}

// runSelect drives the dependency-scheduled path: repeatedly pick the
// first eligible subtask in plan order, execute it, settle it, and loop
// until everything has settled. A graph that cannot make progress is a
// dependency error, routed to Synthesize rather than thrown.
func (s *Scheduler) runSelect(ctx context.Context, state *RunState) {
	g := graph.New()
	if err := g.Build(state.Subtasks); err != nil {
		state.Fail(fmt.Sprintf("invalid plan: %v", err))
		state.NextStep = StepSynthesize
		return
	}

	for !g.Settled() {
		ready := g.Ready()
		if len(ready) == 0 {
			state.Fail("dependency cycle: no subtask is eligible to run")
			state.NextStep = StepSynthesize
			return
		}

		subtask := ready[0]
		subtask.Context = s.dependencyContext(state, g, subtask)

		s.executeSubtask(ctx, state, subtask, subtask.Description)
		g.MarkSettled(subtask.ID)
	}

	state.NextStep = StepSynthesize
}

// dependencyContext assembles a subtask's context from its successful
// dependencies, in dependency-declaration order, followed by the
// subtask's own static context.
func (s *Scheduler) dependencyContext(state *RunState, g *graph.DependencyGraph, subtask *models.SubTask) string {
	var b strings.Builder
	for _, depID := range g.Dependencies(subtask.ID) {
		if dep := state.Result(depID); dep != nil && dep.Success {
			fmt.Fprintf(&b, "Result from %s:\n%s\n\n", depID, dep.Result)
		}
	}
	b.WriteString(subtask.Context)
	return b.String()
}

// executeSubtask runs one subtask through the worker and records its
// result, emitting lifecycle events either way.
func (s *Scheduler) executeSubtask(ctx context.Context, state *RunState, subtask *models.SubTask, title string) *models.WorkerResult {
	s.emit(Event{Type: EventSubtaskStarted, SubtaskID: subtask.ID, Message: subtask.Task})
	s.logger.Log("subtask %s (%s) started", subtask.ID, subtask.Type)

	result := s.worker.Execute(ctx, subtask)
	verdict := "failed"
	if result.Success {
		verdict = "succeeded"
	}
	s.logger.Log("subtask %s %s (tools: %v)", subtask.ID, verdict, result.ToolsUsed)
	s.emit(Event{Type: EventSubtaskFinished, SubtaskID: subtask.ID, Err: result.Error})

	state.RecordResult(subtask.ID, title, result)
	return result
}

// runSynthesize merges recorded results into the final answer and ends
// the run. The sticky run error, when set, wins over the synthesized
// text's success.
func (s *Scheduler) runSynthesize(ctx context.Context, state *RunState) Outcome {
	s.emit(Event{Type: EventSynthesisStarted})

	final, err := s.synthesizer.Synthesize(ctx, state.Task.Query, state.Entries())
	state.FinalResult = final
	if err != nil {
		state.Fail(fmt.Sprintf("synthesis failed: %v", err))
	}
	state.NextStep = StepEnd

	if msg := state.Err(); msg != "" {
		// Failures still carry a best-effort response so the caller
		// never sees an empty result.
		return Outcome{Response: state.FinalResult, Error: msg}
	}
	return Outcome{Success: true, Response: state.FinalResult}
}

func (s *Scheduler) emit(event Event) {
	if s.emitter != nil {
		s.emitter.Emit(event)
	}
}

// titleFor names a fixed node's synthesis section.
func titleFor(typ models.SubTaskType) string {
	switch typ {
	case models.SubTaskGeneration:
		return "Generation"
	case models.SubTaskTest:
		return "Test"
	default:
		return "Analysis"
	}
}
