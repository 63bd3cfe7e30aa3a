package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"

	"github.com/harrison/undercity/internal/modelclient"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/tracker"
)

// DefaultWriteCeiling is the maximum number of write|edit operations a
// single file may receive within one worker's agent loop before further
// writes to it are rejected (spec §4.6.1 item 6).
const DefaultWriteCeiling = 5

// ToolExecutor runs tool calls inside a workspace, recording every access
// with the File Access Tracker and enforcing the write ceiling.
type ToolExecutor struct {
	workerID     string
	taskID       string
	workspaceDir string
	trunkDir     string
	writeCeiling int

	runner CommandRunner
	tr     *tracker.Tracker

	mu          sync.Mutex
	writeCounts map[string]int
}

// NewToolExecutor constructs an executor scoped to one worker/workspace.
func NewToolExecutor(workerID, taskID, workspaceDir, trunkDir string, tr *tracker.Tracker, runner CommandRunner) *ToolExecutor {
	return &ToolExecutor{
		workerID:     workerID,
		taskID:       taskID,
		workspaceDir: workspaceDir,
		trunkDir:     trunkDir,
		writeCeiling: DefaultWriteCeiling,
		runner:       runner,
		tr:           tr,
		writeCounts:  make(map[string]int),
	}
}

// Execute implements modelclient.ToolExecutor.
func (e *ToolExecutor) Execute(ctx context.Context, call modelclient.ToolCall) modelclient.ToolResult {
	switch call.Name {
	case "Read":
		return e.read(call)
	case "Write":
		return e.write(ctx, call)
	case "Edit":
		return e.edit(ctx, call)
	case "Bash":
		return e.bash(ctx, call)
	case "Search":
		return e.search(ctx, call)
	default:
		return modelclient.ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("unknown tool %q", call.Name), IsError: true}
	}
}

func (e *ToolExecutor) resolvePath(rawPath string) string {
	if filepath.IsAbs(rawPath) {
		return rawPath
	}
	return filepath.Join(e.workspaceDir, rawPath)
}

func (e *ToolExecutor) read(call modelclient.ToolCall) modelclient.ToolResult {
	rawPath, _ := call.Input["file_path"].(string)
	path := e.resolvePath(rawPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	e.record(rawPath, models.FileOpRead)
	return modelclient.ToolResult{ToolCallID: call.ID, Content: numberedLines(string(data))}
}

func (e *ToolExecutor) write(ctx context.Context, call modelclient.ToolCall) modelclient.ToolResult {
	rawPath, _ := call.Input["file_path"].(string)
	content, _ := call.Input["content"].(string)

	if rejected := e.checkWriteCeiling(rawPath); rejected != "" {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: rejected, IsError: true}
	}

	path := e.resolvePath(rawPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	e.recordWrite(rawPath, models.FileOpWrite)
	return modelclient.ToolResult{ToolCallID: call.ID, Content: "wrote " + rawPath}
}

func (e *ToolExecutor) edit(ctx context.Context, call modelclient.ToolCall) modelclient.ToolResult {
	rawPath, _ := call.Input["file_path"].(string)
	oldString, _ := call.Input["old_string"].(string)
	newString, _ := call.Input["new_string"].(string)
	replaceAll, _ := call.Input["replace_all"].(bool)

	if rejected := e.checkWriteCeiling(rawPath); rejected != "" {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: rejected, IsError: true}
	}

	path := e.resolvePath(rawPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	original := string(data)
	count := strings.Count(original, oldString)
	if count == 0 {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: "old_string not found", IsError: true}
	}
	if count > 1 && !replaceAll {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: "old_string is not unique; pass replace_all or a larger match", IsError: true}
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(original, oldString, newString)
	} else {
		updated = strings.Replace(original, oldString, newString, 1)
	}

	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	e.recordWrite(rawPath, models.FileOpEdit)
	return modelclient.ToolResult{ToolCallID: call.ID, Content: "edited " + rawPath}
}

func (e *ToolExecutor) bash(ctx context.Context, call modelclient.ToolCall) modelclient.ToolResult {
	command, _ := call.Input["command"].(string)
	if _, err := shellquote.Split(command); err != nil {
		return modelclient.ToolResult{ToolCallID: call.ID, Content: "unparseable command: " + err.Error(), IsError: true}
	}

	output, err := e.runner.Run(ctx, e.workspaceDir, command)
	return modelclient.ToolResult{ToolCallID: call.ID, Content: output, IsError: err != nil}
}

func (e *ToolExecutor) search(ctx context.Context, call modelclient.ToolCall) modelclient.ToolResult {
	pattern, _ := call.Input["pattern"].(string)
	glob, _ := call.Input["glob"].(string)

	args := []string{"rg", "--line-number", "--no-heading"}
	if glob != "" {
		args = append(args, "--glob", glob)
	}
	args = append(args, pattern)

	output, err := e.runner.Run(ctx, e.workspaceDir, shellquote.Join(args...))
	return modelclient.ToolResult{ToolCallID: call.ID, Content: output, IsError: err != nil}
}

// checkWriteCeiling returns a non-empty rejection message if rawPath has
// already reached the configured write ceiling.
func (e *ToolExecutor) checkWriteCeiling(rawPath string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writeCounts[rawPath] >= e.writeCeiling {
		return "write ceiling of " + strconv.Itoa(e.writeCeiling) + " reached for " + rawPath + "; reconsider your approach instead of rewriting this file again"
	}
	return ""
}

func (e *ToolExecutor) recordWrite(rawPath string, op models.FileOp) {
	e.mu.Lock()
	e.writeCounts[rawPath]++
	e.mu.Unlock()
	e.record(rawPath, op)
}

func (e *ToolExecutor) record(rawPath string, op models.FileOp) {
	if e.tr == nil {
		return
	}
	e.tr.RecordFileAccess(e.workerID, rawPath, op, e.taskID, e.workspaceDir)
}

func numberedLines(content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%6d\t%s\n", i+1, line)
	}
	return b.String()
}
