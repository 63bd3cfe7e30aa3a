package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initTrunk(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-b", "main")
	run("config", "user.name", "tester")
	run("config", "user.email", "tester@localhost")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644))
	run("add", "-A")
	run("commit", "-m", "initial commit")
	return dir
}

func TestCreateAndDestroyWorkspace(t *testing.T) {
	trunk := initTrunk(t)
	root := filepath.Join(t.TempDir(), "worktrees")

	mgr, err := New(trunk, root)
	require.NoError(t, err)

	ws, err := mgr.Create("task-1", "main")
	require.NoError(t, err)
	require.DirExists(t, ws.Path)
	require.NotEmpty(t, ws.BaseCommit)

	active, err := mgr.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, mgr.Destroy(ws, DestroyOptions{Keep: false}))
	require.NoDirExists(t, ws.Path)
}

func TestDestroyKeepsDirtyWorkspaceWhenRequested(t *testing.T) {
	trunk := initTrunk(t)
	root := filepath.Join(t.TempDir(), "worktrees")

	mgr, err := New(trunk, root)
	require.NoError(t, err)

	ws, err := mgr.Create("task-2", "main")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "scratch.txt"), []byte("wip\n"), 0644))

	require.NoError(t, mgr.Destroy(ws, DestroyOptions{Keep: true}))
	require.DirExists(t, ws.Path, "dirty workspace must survive Destroy when Keep=true")
}
