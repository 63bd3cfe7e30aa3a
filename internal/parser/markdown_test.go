package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupsAndObjectives(t *testing.T) {
	doc := []byte(`# Backend

- Add a retry budget to the merge queue
- Wire health monitor nudges into the console logger

# Frontend

- Render merge status in the dashboard
`)

	tasks, err := NewMarkdownParser().Parse(doc)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, "Backend", tasks[0].Group)
	assert.Equal(t, "Add a retry budget to the merge queue", tasks[0].Objective)
	assert.Equal(t, "Frontend", tasks[2].Group)
	assert.Equal(t, "Render merge status in the dashboard", tasks[2].Objective)
}

func TestParseDependsAnnotation(t *testing.T) {
	doc := []byte(`# Plan

- Build the config loader
- Wire the config loader into main (depends: 1)
`)

	tasks, err := NewMarkdownParser().Parse(doc)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "Build the config loader", tasks[0].Objective)
	assert.Empty(t, tasks[0].DependsOn)
	assert.Equal(t, "Wire the config loader into main", tasks[1].Objective)
	assert.Equal(t, []int{1}, tasks[1].DependsOn)
}

func TestParseReturnsEmptyForPlainProse(t *testing.T) {
	tasks, err := NewMarkdownParser().Parse([]byte("Just a paragraph, no lists.\n"))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
