// Package workspace implements the Workspace Manager: per-task filesystem
// sandboxes branched from trunk via linked git worktrees (spec §4.3).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/undercity/internal/gitrepo"
	"github.com/harrison/undercity/internal/models"
)

const branchPrefix = "undercity/"

// Manager creates and destroys linked-worktree workspaces rooted under
// worktreeRoot, branched from the trunk repository at trunkDir.
type Manager struct {
	trunkDir     string
	worktreeRoot string
}

// New constructs a Manager. The CLI passes `<stateDir>/workspaces` as
// worktreeRoot.
func New(trunkDir, worktreeRoot string) (*Manager, error) {
	if err := os.MkdirAll(worktreeRoot, 0755); err != nil {
		return nil, err
	}
	return &Manager{trunkDir: trunkDir, worktreeRoot: worktreeRoot}, nil
}

// Create produces a linked sibling checkout of trunk at baseRef, rooted at a
// path that encodes taskId for forensic recovery after a crash.
func (m *Manager) Create(taskID, baseRef string) (models.Workspace, error) {
	path := m.pathFor(taskID)
	if _, err := os.Stat(path); err == nil {
		return models.Workspace{}, fmt.Errorf("workspace for task %s already exists at %s", taskID, path)
	}

	trunk := gitrepo.Open(m.trunkDir)
	baseCommit, err := trunk.HeadCommit(baseRef)
	if err != nil {
		return models.Workspace{}, fmt.Errorf("resolve base ref %s: %w", baseRef, err)
	}

	branch := branchPrefix + taskID
	if err := trunk.CreateWorktree(path, branch, baseRef); err != nil {
		return models.Workspace{}, fmt.Errorf("create worktree for task %s: %w", taskID, err)
	}

	worktree := gitrepo.Open(path)
	worktree.EnsureIdentity()

	return models.Workspace{
		Path:        path,
		TrunkBranch: branch,
		BaseCommit:  baseCommit,
		TaskID:      taskID,
		BranchName:  branch,
		CreatedAt:   time.Now(),
	}, nil
}

// DestroyOptions controls workspace teardown.
type DestroyOptions struct {
	// Keep preserves the worktree on disk (for forensics) if it has
	// uncommitted changes, instead of discarding them.
	Keep bool
}

// Destroy removes a workspace's worktree and branch. If the workspace has
// uncommitted changes and opts.Keep is true, it is left on disk untouched.
func (m *Manager) Destroy(ws models.Workspace, opts DestroyOptions) error {
	worktree := gitrepo.Open(ws.Path)
	if opts.Keep {
		dirty, err := worktree.HasChanges()
		if err == nil && dirty {
			return nil
		}
	}

	trunk := gitrepo.Open(m.trunkDir)
	if err := trunk.RemoveWorktree(ws.Path, true); err != nil {
		return fmt.Errorf("remove worktree %s: %w", ws.Path, err)
	}
	if err := trunk.DeleteBranch(ws.BranchName, true); err != nil {
		return fmt.Errorf("delete branch %s: %w", ws.BranchName, err)
	}
	return nil
}

// ListActive enumerates workspaces currently present on disk under
// worktreeRoot, recovering taskId from the path.
func (m *Manager) ListActive() ([]models.Workspace, error) {
	entries, err := os.ReadDir(m.worktreeRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var active []models.Workspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		taskID := strings.TrimPrefix(entry.Name(), "task-")
		path := filepath.Join(m.worktreeRoot, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		active = append(active, models.Workspace{
			Path:        path,
			TrunkBranch: branchPrefix + taskID,
			TaskID:      taskID,
			BranchName:  branchPrefix + taskID,
			CreatedAt:   info.ModTime(),
		})
	}
	return active, nil
}

func (m *Manager) pathFor(taskID string) string {
	return filepath.Join(m.worktreeRoot, "task-"+taskID)
}
