package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	t.Setenv("UNDERCITY_STATE_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Board.MaxConcurrent)
	assert.Equal(t, 5, cfg.Worker.WriteCeiling)
	assert.Equal(t, 3, cfg.Merge.MaxRetries)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("UNDERCITY_STATE_DIR", t.TempDir())
	t.Setenv("UNDERCITY_BOARD_MAX_CONCURRENT", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Board.MaxConcurrent)
}

func TestLoadConfigFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("UNDERCITY_STATE_DIR", dir)

	path := dir + "/undercity.yaml"
	content := "worker:\n  cheap_model: custom-cheap-model\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-cheap-model", cfg.Worker.CheapModel)
	assert.Equal(t, 3, cfg.Worker.MidBudget, "unset keys keep their default")
}

func TestHomeCreatesStateDir(t *testing.T) {
	dir := t.TempDir() + "/nested/state"
	t.Setenv("UNDERCITY_STATE_DIR", dir)

	home, err := Home()
	require.NoError(t, err)
	assert.Equal(t, dir, home)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
