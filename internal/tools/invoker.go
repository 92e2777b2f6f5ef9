package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomworks/loom/internal/workspace"
)

// Result is the uniform envelope for one tool invocation. Failures are
// content for the model to read, never errors that abort the subtask.
type Result struct {
	Content string
	IsError bool
}

// Invoker executes tool calls against the workspace collaborator.
type Invoker struct {
	ws workspace.Workspace
}

// NewInvoker creates an invoker backed by the given workspace.
func NewInvoker(ws workspace.Workspace) *Invoker {
	return &Invoker{ws: ws}
}

// Invoke runs one named tool call. Unknown tools and malformed arguments
// produce error results; nothing escapes as a Go error.
func (i *Invoker) Invoke(ctx context.Context, name string, input json.RawMessage) Result {
	switch name {
	case NameReadFile:
		return i.invokeReadFile(input)
	case NameWriteFile:
		return i.invokeWriteFile(input)
	case NameListFiles:
		return i.invokeListFiles(input)
	case NameSearchCode:
		return i.invokeSearchCode(input)
	case NameRunCommand:
		return i.invokeRunCommand(ctx, input)
	default:
		return Result{
			Content: fmt.Sprintf(`{"error": "Tool %s not found"}`, name),
			IsError: true,
		}
	}
}

func (i *Invoker) invokeReadFile(input json.RawMessage) Result {
	var params struct {
		FilePath string `json:"filePath"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return badParams(err)
	}
	if params.FilePath == "" {
		return Result{Content: "filePath is required", IsError: true}
	}
	return fromWorkspace(i.ws.Read(params.FilePath))
}

func (i *Invoker) invokeWriteFile(input json.RawMessage) Result {
	var params struct {
		FilePath string `json:"filePath"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return badParams(err)
	}
	if params.FilePath == "" {
		return Result{Content: "filePath is required", IsError: true}
	}
	// Writes always go through confirmation; a decline comes back as an
	// ordinary failed result the model can react to.
	return fromWorkspace(i.ws.Write(params.FilePath, params.Content, true))
}

func (i *Invoker) invokeListFiles(input json.RawMessage) Result {
	var params struct {
		DirectoryPath string `json:"directoryPath"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return badParams(err)
	}
	if params.DirectoryPath == "" {
		params.DirectoryPath = "."
	}
	return fromWorkspace(i.ws.List(params.DirectoryPath))
}

func (i *Invoker) invokeSearchCode(input json.RawMessage) Result {
	var params struct {
		Query       string `json:"query"`
		FilePattern string `json:"filePattern"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return badParams(err)
	}
	return fromWorkspace(i.ws.Search(params.Query, params.FilePattern))
}

func (i *Invoker) invokeRunCommand(ctx context.Context, input json.RawMessage) Result {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return badParams(err)
	}
	return fromWorkspace(i.ws.RunCommand(ctx, params.Command))
}

func badParams(err error) Result {
	return Result{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
}

// fromWorkspace maps a workspace envelope to a tool result.
func fromWorkspace(res workspace.Result) Result {
	if !res.Success {
		return Result{Content: res.Error, IsError: true}
	}
	return Result{Content: res.Data}
}
