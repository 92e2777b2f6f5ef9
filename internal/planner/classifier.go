package planner

import "strings"

// Outcome is the routing decision derived from the model's classification
// token. The zero value is OutcomeIrrelevant so an unset outcome never
// routes work.
type Outcome int

const (
	// OutcomeIrrelevant terminates the run without executing subtasks.
	OutcomeIrrelevant Outcome = iota
	// OutcomeAnalysis routes to a single analysis subtask.
	OutcomeAnalysis
	// OutcomeGeneration routes to a single generation subtask.
	OutcomeGeneration
	// OutcomeAnalysisWithGeneration routes analysis first, then generation.
	OutcomeAnalysisWithGeneration
)

// String returns the classification token for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAnalysis:
		return "executeAnalysisTask"
	case OutcomeGeneration:
		return "executeGenerationTask"
	case OutcomeAnalysisWithGeneration:
		return "executeAnalysisWithGeneration"
	default:
		return "handleIrrelevantQuery"
	}
}

// parseOutcome maps a model response to an Outcome. Anything outside the
// fixed vocabulary is treated as irrelevant rather than rejected, so a
// misbehaving model degrades to a polite no-op instead of an error.
func parseOutcome(response string) Outcome {
	switch strings.TrimSpace(response) {
	case "executeAnalysisTask":
		return OutcomeAnalysis
	case "executeGenerationTask":
		return OutcomeGeneration
	case "executeAnalysisWithGeneration":
		return OutcomeAnalysisWithGeneration
	default:
		return OutcomeIrrelevant
	}
}
