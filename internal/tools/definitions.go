// Package tools declares the fixed capability set offered to the model and
// executes individual tool calls against the workspace collaborator.
package tools

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// Tool names are part of the LLM-facing contract; changing them requires
// re-validating prompt compatibility.
const (
	NameReadFile   = "readFile"
	NameWriteFile  = "writeFile"
	NameListFiles  = "listFiles"
	NameSearchCode = "searchCode"
	NameRunCommand = "runCommand"
)

// Definitions returns the tool schemas for model calls.
func Definitions() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        NameReadFile,
				Description: anthropic.String("Read a file from the workspace and return its contents."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"filePath": map[string]interface{}{
							"type":        "string",
							"description": "Path to the file to read, relative to the workspace root",
						},
					},
					Required: []string{"filePath"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        NameWriteFile,
				Description: anthropic.String("Write content to a file. The user may decline the write."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"filePath": map[string]interface{}{
							"type":        "string",
							"description": "Path to the file to write",
						},
						"content": map[string]interface{}{
							"type":        "string",
							"description": "Full content to write to the file",
						},
					},
					Required: []string{"filePath", "content"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        NameListFiles,
				Description: anthropic.String("List the contents of a directory."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"directoryPath": map[string]interface{}{
							"type":        "string",
							"description": "Directory to list, relative to the workspace root",
						},
					},
					Required: []string{"directoryPath"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        NameSearchCode,
				Description: anthropic.String("Search workspace files for a regex pattern."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "Regex pattern to search for",
						},
						"filePattern": map[string]interface{}{
							"type":        "string",
							"description": "Optional glob restricting the search (e.g. '*.go')",
						},
					},
					Required: []string{"query"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        NameRunCommand,
				Description: anthropic.String("Execute a shell command in the workspace and return its output."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"command": map[string]interface{}{
							"type":        "string",
							"description": "The shell command to execute",
						},
					},
					Required: []string{"command"},
				},
			},
		},
	}
}

// Known reports whether name is a registered tool.
func Known(name string) bool {
	switch name {
	case NameReadFile, NameWriteFile, NameListFiles, NameSearchCode, NameRunCommand:
		return true
	default:
		return false
	}
}
