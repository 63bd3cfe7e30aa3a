package modelclient

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// toolDefinitions returns the tool schemas offered to the model during the
// agent loop: read, write, edit, bash, and search (spec §4.6.1 item 6).
func toolDefinitions() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Read",
				Description: anthropic.String("Read a file from the workspace. Returns file contents with line numbers."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"file_path": map[string]interface{}{"type": "string", "description": "Path to the file to read"},
						"offset":    map[string]interface{}{"type": "integer", "description": "Line number to start reading from (optional)"},
						"limit":     map[string]interface{}{"type": "integer", "description": "Maximum number of lines to read (optional)"},
					},
					Required: []string{"file_path"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Write",
				Description: anthropic.String("Write content to a file, creating parent directories and the file if needed."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"file_path": map[string]interface{}{"type": "string", "description": "Path to the file to write"},
						"content":   map[string]interface{}{"type": "string", "description": "Full content to write"},
					},
					Required: []string{"file_path", "content"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Edit",
				Description: anthropic.String("Replace text in a file. old_string must be unique unless replace_all is set."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"file_path":   map[string]interface{}{"type": "string", "description": "Path to the file to edit"},
						"old_string":  map[string]interface{}{"type": "string", "description": "Exact text to find and replace"},
						"new_string":  map[string]interface{}{"type": "string", "description": "Replacement text"},
						"replace_all": map[string]interface{}{"type": "boolean", "description": "Replace every occurrence (default false)"},
					},
					Required: []string{"file_path", "old_string", "new_string"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Bash",
				Description: anthropic.String("Run a shell command inside the workspace and return its combined output."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"command":     map[string]interface{}{"type": "string", "description": "The command to run"},
						"description": map[string]interface{}{"type": "string", "description": "Short description of what the command does"},
					},
					Required: []string{"command"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        "Search",
				Description: anthropic.String("Search the workspace for a regular expression pattern, optionally scoped to a glob."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"pattern": map[string]interface{}{"type": "string", "description": "Regular expression to search for"},
						"glob":    map[string]interface{}{"type": "string", "description": "Glob to scope the search (optional)"},
					},
					Required: []string{"pattern"},
				},
			},
		},
	}
}
