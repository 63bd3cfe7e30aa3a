package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const moduleMarker = "github.com/harrison/undercity"

// Home returns the undercity state directory.
// Priority order:
//  1. UNDERCITY_STATE_DIR environment variable, if set
//  2. <repo root>/.undercity, where repo root is found by walking up for
//     a go.mod containing this module's path
//  3. <cwd>/.undercity as a fallback
//
// The directory is created if it doesn't exist.
func Home() (string, error) {
	if home := os.Getenv("UNDERCITY_STATE_DIR"); home != "" {
		return ensureDir(home)
	}

	if root, err := findRepoRoot(); err == nil && root != "" {
		return ensureDir(filepath.Join(root, ".undercity"))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return ensureDir(filepath.Join(cwd, ".undercity"))
}

func ensureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("create state directory %s: %w", path, err)
	}
	return path, nil
}

func findRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for current := cwd; ; {
		if data, err := os.ReadFile(filepath.Join(current, "go.mod")); err == nil {
			if strings.Contains(string(data), moduleMarker) {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", fmt.Errorf("repository root not found (looking for go.mod containing %s)", moduleMarker)
}
