package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loomworks/loom/internal/api"
	"github.com/loomworks/loom/internal/tools"
	"github.com/loomworks/loom/internal/workspace"
	"github.com/loomworks/loom/pkg/models"
)

// scriptedLLM replays canned replies in order and records every request.
type scriptedLLM struct {
	replies  []*api.Reply
	requests []api.Request
}

func (s *scriptedLLM) Send(ctx context.Context, req api.Request) (*api.Reply, error) {
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return &api.Reply{Text: "done"}, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// loopingLLM always requests another tool call.
type loopingLLM struct {
	calls int
}

func (l *loopingLLM) Send(ctx context.Context, req api.Request) (*api.Reply, error) {
	l.calls++
	return &api.Reply{
		ToolCalls: []models.ToolCall{{
			ID:        "call-1",
			Name:      "listFiles",
			Arguments: json.RawMessage(`{"directoryPath": "."}`),
		}},
	}, nil
}

func newInvoker(t *testing.T) (*tools.Invoker, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.NewLocal(workspace.Config{Root: root})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	t.Cleanup(ws.Close)
	return tools.NewInvoker(ws), root
}

func analysisSubtask(task string) *models.SubTask {
	return &models.SubTask{ID: "s1", Type: models.SubTaskAnalysis, Task: task}
}

func TestExecuteNilSubtask(t *testing.T) {
	llm := &scriptedLLM{}
	inv, _ := newInvoker(t)
	w := New(Config{LLM: llm, Invoker: inv})

	res := w.Execute(context.Background(), nil)
	if res.Success {
		t.Fatal("nil subtask should fail")
	}
	if len(llm.requests) != 0 {
		t.Errorf("nil subtask made %d model calls, want 0", len(llm.requests))
	}
}

func TestExecuteNoToolCalls(t *testing.T) {
	llm := &scriptedLLM{replies: []*api.Reply{{Text: "the function parses config"}}}
	inv, _ := newInvoker(t)
	w := New(Config{LLM: llm, Invoker: inv})

	res := w.Execute(context.Background(), analysisSubtask("explain parseConfig"))
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if res.Result != "the function parses config" {
		t.Errorf("Result = %q", res.Result)
	}
	if len(res.ToolsUsed) != 0 {
		t.Errorf("ToolsUsed = %v, want empty", res.ToolsUsed)
	}
	if len(llm.requests) != 1 {
		t.Fatalf("model calls = %d, want 1", len(llm.requests))
	}

	req := llm.requests[0]
	if !strings.Contains(req.System, "analysis") {
		t.Errorf("analysis subtask should get the analysis prompt, got %q", req.System)
	}
	if len(req.Tools) == 0 {
		t.Error("request should carry the tool schema")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Text != "explain parseConfig" {
		t.Errorf("final message should carry the task, got %q", last.Text)
	}
}

func TestExecuteIncludesContextMessage(t *testing.T) {
	llm := &scriptedLLM{replies: []*api.Reply{{Text: "ok"}}}
	inv, _ := newInvoker(t)
	w := New(Config{LLM: llm, Invoker: inv})

	st := analysisSubtask("do the thing")
	st.Context = "Result from scan:\nfound it\n\n"
	w.Execute(context.Background(), st)

	msgs := llm.requests[0].Messages
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "found it") {
		t.Errorf("first message should carry the context, got %q", msgs[0].Text)
	}
}

func TestExecuteToolRound(t *testing.T) {
	inv, root := newInvoker(t)
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	llm := &scriptedLLM{replies: []*api.Reply{
		{
			Text: "reading the file",
			ToolCalls: []models.ToolCall{{
				ID:        "call-1",
				Name:      "readFile",
				Arguments: json.RawMessage(`{"filePath": "main.go"}`),
			}},
		},
		{Text: "it is a main package"},
	}}
	w := New(Config{LLM: llm, Invoker: inv})

	res := w.Execute(context.Background(), analysisSubtask("what is in main.go"))
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if res.Result != "it is a main package" {
		t.Errorf("Result = %q", res.Result)
	}
	if len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "readFile" {
		t.Errorf("ToolsUsed = %v", res.ToolsUsed)
	}
	if len(llm.requests) != 2 {
		t.Fatalf("model calls = %d, want 2", len(llm.requests))
	}

	// The second request carries the tool outcome correlated by call id.
	second := llm.requests[1].Messages
	last := second[len(second)-1]
	if len(last.ToolOutcomes) != 1 {
		t.Fatalf("tool outcomes = %d, want 1", len(last.ToolOutcomes))
	}
	if last.ToolOutcomes[0].ToolCallID != "call-1" {
		t.Errorf("ToolCallID = %q", last.ToolOutcomes[0].ToolCallID)
	}
	if last.ToolOutcomes[0].Content != "package main\n" {
		t.Errorf("outcome content = %q", last.ToolOutcomes[0].Content)
	}
}

func TestExecuteUnknownToolContinuesRound(t *testing.T) {
	inv, _ := newInvoker(t)
	llm := &scriptedLLM{replies: []*api.Reply{
		{
			ToolCalls: []models.ToolCall{{
				ID:        "call-1",
				Name:      "deployToProd",
				Arguments: json.RawMessage(`{}`),
			}},
		},
		{Text: "recovered"},
	}}
	w := New(Config{LLM: llm, Invoker: inv})

	res := w.Execute(context.Background(), analysisSubtask("task"))
	if !res.Success {
		t.Fatalf("unknown tool should not abort the subtask: %s", res.Error)
	}
	if len(res.ToolsUsed) != 0 {
		t.Errorf("unknown tool should not be recorded as used: %v", res.ToolsUsed)
	}

	second := llm.requests[1].Messages
	last := second[len(second)-1]
	if len(last.ToolOutcomes) != 1 || !last.ToolOutcomes[0].IsError {
		t.Fatal("unknown tool should produce an error outcome")
	}
	if last.ToolOutcomes[0].Content != `{"error": "Tool deployToProd not found"}` {
		t.Errorf("outcome content = %q", last.ToolOutcomes[0].Content)
	}
}

func TestExecuteRoundCap(t *testing.T) {
	inv, _ := newInvoker(t)
	llm := &loopingLLM{}
	w := New(Config{LLM: llm, Invoker: inv, MaxRounds: 3})

	res := w.Execute(context.Background(), analysisSubtask("task"))
	if res.Success {
		t.Fatal("exhausted loop should fail")
	}
	if !strings.Contains(res.Error, "maximum tool calls exceeded") {
		t.Errorf("Error = %q", res.Error)
	}
	if llm.calls != 3 {
		t.Errorf("model calls = %d, want exactly 3", llm.calls)
	}
	if len(res.ToolsUsed) != 3 {
		t.Errorf("ToolsUsed = %v, want 3 entries", res.ToolsUsed)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	inv, _ := newInvoker(t)
	llm := &scriptedLLM{}
	w := New(Config{LLM: llm, Invoker: inv})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := w.Execute(ctx, analysisSubtask("task"))
	if res.Success {
		t.Fatal("cancelled context should fail")
	}
	if len(llm.requests) != 0 {
		t.Errorf("cancelled run made %d model calls, want 0", len(llm.requests))
	}
}

func TestExecuteStopFunc(t *testing.T) {
	inv, _ := newInvoker(t)
	llm := &scriptedLLM{}
	w := New(Config{LLM: llm, Invoker: inv, Stop: func() bool { return true }})

	res := w.Execute(context.Background(), analysisSubtask("task"))
	if res.Success {
		t.Fatal("stopped run should fail")
	}
	if !strings.Contains(res.Error, "stopped") {
		t.Errorf("Error = %q", res.Error)
	}
	if len(llm.requests) != 0 {
		t.Errorf("stopped run made %d model calls, want 0", len(llm.requests))
	}
}

func TestExecuteToolObserver(t *testing.T) {
	inv, _ := newInvoker(t)
	llm := &scriptedLLM{replies: []*api.Reply{
		{
			ToolCalls: []models.ToolCall{{
				ID:        "call-1",
				Name:      "listFiles",
				Arguments: json.RawMessage(`{"directoryPath": "."}`),
			}},
		},
		{Text: "done"},
	}}

	var seen []string
	w := New(Config{LLM: llm, Invoker: inv, OnToolCall: func(name string) {
		seen = append(seen, name)
	}})

	w.Execute(context.Background(), analysisSubtask("task"))
	if len(seen) != 1 || seen[0] != "listFiles" {
		t.Errorf("observer saw %v", seen)
	}
}

func TestSystemPromptPerType(t *testing.T) {
	cases := []struct {
		typ  models.SubTaskType
		want string
	}{
		{models.SubTaskAnalysis, "analysis"},
		{models.SubTaskGeneration, "generation"},
		{models.SubTaskTest, "verification"},
		{models.SubTaskType("mystery"), "analysis"},
	}
	for _, tc := range cases {
		if got := systemPrompt(tc.typ); !strings.Contains(got, tc.want) {
			t.Errorf("systemPrompt(%s) missing %q", tc.typ, tc.want)
		}
	}
}
