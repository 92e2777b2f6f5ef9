package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/loomworks/loom/pkg/models"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages from the orchestrator (task text, context,
	// tool results).
	RoleUser Role = "user"
	// RoleAssistant marks model output echoed back into the transcript.
	RoleAssistant Role = "assistant"
)

// ToolOutcome is the result of one tool invocation, correlated to the
// requesting call by ToolCallID.
type ToolOutcome struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one transcript entry, decoupled from the SDK wire types so
// components and tests never construct SDK response unions.
type Message struct {
	Role Role
	Text string
	// ToolCalls echoes assistant-requested calls (assistant role only).
	ToolCalls []models.ToolCall
	// ToolOutcomes carries tool results back to the model (user role only).
	ToolOutcomes []ToolOutcome
}

// Reply is what the model returned for one request: assistant text plus zero
// or more structured tool calls.
type Reply struct {
	Text      string
	ToolCalls []models.ToolCall
}

// Request is one model invocation: a system prompt, the transcript so far,
// and the tool schema offered for this turn.
type Request struct {
	System    string
	Messages  []Message
	Tools     []anthropic.ToolUnionParam
	MaxTokens int64
}

// Messenger is the model-client boundary. Implementations send a message
// list plus tool schema and return assistant text with structured tool
// calls. The production implementation is Client; tests supply fakes.
type Messenger interface {
	Send(ctx context.Context, req Request) (*Reply, error)
}

// Send implements Messenger against the Anthropic API.
// Transport and payload errors are returned as plain errors; callers are
// expected to convert them into structured results at their own boundary.
func (c *Client) Send(ctx context.Context, req Request) (*Reply, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  toSDKMessages(req.Messages),
		Tools:     req.Tools,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.sdk().Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}

	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	reply := &Reply{}
	var text strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			reply.ToolCalls = append(reply.ToolCalls, models.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: variant.Input,
			})
		}
	}
	reply.Text = text.String()

	return reply, nil
}

// toSDKMessages converts the neutral transcript into SDK message params.
func toSDKMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		if m.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Text))
		}
		for _, call := range m.ToolCalls {
			blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Arguments, call.Name))
		}
		for _, outcome := range m.ToolOutcomes {
			blocks = append(blocks, anthropic.NewToolResultBlock(outcome.ToolCallID, outcome.Content, outcome.IsError))
		}
		if len(blocks) == 0 {
			continue
		}

		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}
