package orchestrator

import (
	"github.com/loomworks/loom/internal/synthesis"
	"github.com/loomworks/loom/pkg/models"
)

// Step names a routing node in the run graph.
type Step string

const (
	StepPlan       Step = "Plan"
	StepAnalysis   Step = "Analysis"
	StepGeneration Step = "Generation"
	StepTest       Step = "Test"
	StepSelect     Step = "Select"
	StepSynthesize Step = "Synthesize"
	StepEnd        Step = "End"
)

// RunState is the mutable context threaded through one run. It is
// constructed fresh per query and only ever touched from the scheduler's
// single sequential control flow, so it carries no locking.
type RunState struct {
	// Task is the root user request.
	Task *models.Task
	// Plan is the planner's optional summary text.
	Plan string
	// Subtasks is the planner-emitted subtask list. Empty on the
	// classification fast path.
	Subtasks []*models.SubTask
	// NextStep names the routing node that runs next.
	NextStep Step
	// FinalResult is set exactly once, by the Synthesize step.
	FinalResult string

	// results maps subtask ID to its outcome; order preserves the
	// recording sequence so synthesis sections are deterministic.
	results map[string]*models.WorkerResult
	order   []string
	titles  map[string]string

	err string
}

// NewRunState creates the state for one run of query.
func NewRunState(query string) *RunState {
	return &RunState{
		Task:     &models.Task{Query: query},
		NextStep: StepPlan,
		results:  make(map[string]*models.WorkerResult),
		titles:   make(map[string]string),
	}
}

// RecordResult stores a subtask outcome. Failed results are recorded too;
// synthesis filters them out but dependents can still observe them.
func (s *RunState) RecordResult(id, title string, result *models.WorkerResult) {
	if _, exists := s.results[id]; !exists {
		s.order = append(s.order, id)
	}
	s.results[id] = result
	s.titles[id] = title
}

// Result returns the recorded outcome for id, or nil.
func (s *RunState) Result(id string) *models.WorkerResult {
	return s.results[id]
}

// ResultCount returns the number of recorded outcomes.
func (s *RunState) ResultCount() int {
	return len(s.results)
}

// Entries returns the recorded results in order, shaped for synthesis.
func (s *RunState) Entries() []synthesis.Entry {
	entries := make([]synthesis.Entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, synthesis.Entry{
			ID:     id,
			Title:  s.titles[id],
			Result: s.results[id],
		})
	}
	return entries
}

// Fail records a run-level error. The first error sticks; later failures
// never overwrite it.
func (s *RunState) Fail(msg string) {
	if s.err == "" {
		s.err = msg
	}
}

// Err returns the sticky run-level error, empty if none.
func (s *RunState) Err() string {
	return s.err
}
