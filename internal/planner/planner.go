// Package planner turns a user request into a routing decision: either a
// single classification token or a full dependency-linked subtask plan.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/loomworks/loom/internal/api"
	"github.com/loomworks/loom/internal/llmjson"
	"github.com/loomworks/loom/pkg/models"
)

// Mode selects the planning strategy.
type Mode string

const (
	// ModeClassify issues one classification call and routes through the
	// fixed single-subtask graph.
	ModeClassify Mode = "classify"
	// ModeDecompose asks for a full subtask plan with dependencies.
	ModeDecompose Mode = "decompose"
)

// Valid reports whether the mode is one of the supported strategies.
func (m Mode) Valid() bool {
	return m == ModeClassify || m == ModeDecompose
}

// Plan is the planner's output. Exactly one of the two shapes is
// populated: a classification Outcome (Subtasks empty), or a subtask list
// with its Summary (Outcome unused).
type Plan struct {
	Outcome  Outcome
	Summary  string
	Subtasks []*models.SubTask
}

// Decomposed reports whether the plan carries a subtask list rather than
// a single classification.
func (p *Plan) Decomposed() bool {
	return len(p.Subtasks) > 0
}

// Planner produces a Plan for a user query using one model call.
type Planner struct {
	llm  api.Messenger
	mode Mode
}

// New creates a planner. An invalid mode falls back to classification.
func New(llm api.Messenger, mode Mode) *Planner {
	if !mode.Valid() {
		mode = ModeClassify
	}
	return &Planner{llm: llm, mode: mode}
}

// Plan produces the routing decision for the query.
// In classification mode an unusable response degrades to the irrelevant
// outcome. In decomposition mode an unusable response is a planning error
// that terminates the run.
func (p *Planner) Plan(ctx context.Context, query string) (*Plan, error) {
	switch p.mode {
	case ModeDecompose:
		return p.decompose(ctx, query)
	default:
		return p.classify(ctx, query)
	}
}

func (p *Planner) classify(ctx context.Context, query string) (*Plan, error) {
	reply, err := p.llm.Send(ctx, api.Request{
		Messages: []api.Message{{
			Role: api.RoleUser,
			Text: fmt.Sprintf(classificationPrompt, query),
		}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("classification call: %w", err)
		}
		// Transport failure, not cancellation: degrade to the keyword
		// heuristic so a flaky call doesn't end the run before it starts.
		return &Plan{Outcome: heuristicOutcome(query)}, nil
	}

	return &Plan{Outcome: parseOutcome(reply.Text)}, nil
}

// heuristicOutcome is the keyword fallback used when model-based
// classification is unavailable.
func heuristicOutcome(query string) Outcome {
	if SuggestsGeneration(query) {
		return OutcomeAnalysisWithGeneration
	}
	return OutcomeAnalysis
}

// plannedSubTask is the JSON structure the model returns per subtask.
type plannedSubTask struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Task        string   `json:"task"`
	DependsOn   []string `json:"dependsOn"`
}

type planResponse struct {
	Plan     string           `json:"plan"`
	SubTasks []plannedSubTask `json:"subTasks"`
}

func (p *Planner) decompose(ctx context.Context, query string) (*Plan, error) {
	reply, err := p.llm.Send(ctx, api.Request{
		Messages: []api.Message{{
			Role: api.RoleUser,
			Text: fmt.Sprintf(decompositionPrompt, query),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("decomposition call: %w", err)
	}

	var parsed planResponse
	if err := llmjson.Unmarshal(reply.Text, &parsed); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(parsed.SubTasks) == 0 {
		return nil, fmt.Errorf("plan contains no subtasks")
	}

	subtasks := make([]*models.SubTask, len(parsed.SubTasks))
	for i, st := range parsed.SubTasks {
		id := strings.TrimSpace(st.ID)
		if id == "" {
			id = uuid.New().String()
		}
		subtasks[i] = &models.SubTask{
			ID:          id,
			Type:        normalizeType(st.Type),
			Description: st.Description,
			Task:        st.Task,
			DependsOn:   st.DependsOn,
		}
	}

	return &Plan{Summary: parsed.Plan, Subtasks: subtasks}, nil
}

// normalizeType maps the model's type label to a SubTaskType. Unknown
// labels get analysis handling.
func normalizeType(raw string) models.SubTaskType {
	t := models.SubTaskType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return models.SubTaskAnalysis
	}
	return t
}
