// Package synthesis merges subtask results into one final answer.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomworks/loom/internal/api"
	"github.com/loomworks/loom/pkg/models"
)

// NothingToSynthesize is returned when no subtask produced a usable
// result. It doubles as the user-facing text for all-failed runs.
const NothingToSynthesize = "No results were produced to synthesize. The task did not complete successfully."

// apologeticFallback stands in for the final answer when the synthesis
// call itself comes back empty.
const apologeticFallback = "I was unable to produce a final answer from the completed subtasks. Please try again."

const synthesisPrompt = `You are combining the results of several completed subtasks into one answer.

You will receive the original user request and one section per subtask result. Write a single unified response that addresses the original request directly. Merge overlapping findings, resolve ordering so the answer reads naturally, and do not mention the subtask structure.`

// Entry is one subtask's contribution to synthesis.
type Entry struct {
	ID     string
	Title  string
	Result *models.WorkerResult
}

// Synthesizer produces the final answer from collected results.
type Synthesizer struct {
	llm api.Messenger
}

// New creates a synthesizer backed by the given model client.
func New(llm api.Messenger) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize merges entries into the final answer for query.
// Zero successful entries and exactly one successful entry both
// short-circuit without a model call. A model call that comes back empty
// is a failure paired with a readable fallback answer.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, entries []Entry) (string, error) {
	successes := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Result != nil && e.Result.Success {
			successes = append(successes, e)
		}
	}

	switch len(successes) {
	case 0:
		return NothingToSynthesize, nil
	case 1:
		return stripHeading(successes[0].Result.Result), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original request:\n%s\n\n", query)
	b.WriteString("Subtask results:\n\n")
	for _, e := range successes {
		title := e.Title
		if title == "" {
			title = e.ID
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", title, e.Result.Result)
	}

	reply, err := s.llm.Send(ctx, api.Request{
		System: synthesisPrompt,
		Messages: []api.Message{{
			Role: api.RoleUser,
			Text: b.String(),
		}},
	})
	if err != nil {
		return apologeticFallback, fmt.Errorf("synthesis call: %w", err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return apologeticFallback, fmt.Errorf("synthesis produced empty output")
	}
	return reply.Text, nil
}

// stripHeading removes a leading "## <title>" section heading so a
// single-result short-circuit reads as a direct answer.
func stripHeading(text string) string {
	if !strings.HasPrefix(text, "## ") {
		return text
	}
	if idx := strings.Index(text, "\n\n"); idx != -1 {
		return text[idx+2:]
	}
	// A heading with no body strips to nothing.
	if idx := strings.Index(text, "\n"); idx != -1 {
		return text[idx+1:]
	}
	return ""
}
