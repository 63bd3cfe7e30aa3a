package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/undercity/internal/modelclient"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/router"
)

type cleanFirstPassClient struct{}

func (cleanFirstPassClient) Run(ctx context.Context, req modelclient.Request, executor modelclient.ToolExecutor) (<-chan modelclient.Event, error) {
	out := make(chan modelclient.Event, 2)
	out <- modelclient.Event{Type: modelclient.EventResult, Text: "No issues found. LGTM"}
	close(out)
	return out, nil
}

type alwaysPassVerifier struct{}

func (alwaysPassVerifier) Verify(ctx context.Context, workspaceDir string) (bool, []string) {
	return true, nil
}

type neverConvergesClient struct{}

func (neverConvergesClient) Run(ctx context.Context, req modelclient.Request, executor modelclient.ToolExecutor) (<-chan modelclient.Event, error) {
	out := make(chan modelclient.Event, 2)
	out <- modelclient.Event{Type: modelclient.EventResult, Text: "found a bug but did not fix it"}
	close(out)
	return out, nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, call modelclient.ToolCall) modelclient.ToolResult {
	return modelclient.ToolResult{ToolCallID: call.ID}
}

func TestRunConvergesOnFirstCleanPass(t *testing.T) {
	deps := Dependencies{
		ModelClient:  cleanFirstPassClient{},
		Runner:       alwaysPassVerifier{},
		ModelForTier: func(router.Tier) string { return "test-model" },
	}
	task := models.NewTask("task-1", "add error handling to the upload path", 0)

	result := Run(context.Background(), deps, func(string) modelclient.ToolExecutor { return noopExecutor{} }, "/tmp/ws", task, router.TierStrong)

	require.True(t, result.Converged)
	assert.Equal(t, router.TierMid, result.TierReached)
	assert.Equal(t, 1, result.PassesRun)
}

func TestRunProducesUnresolvedTicketsWhenTopTierNeverConverges(t *testing.T) {
	deps := Dependencies{
		ModelClient:  neverConvergesClient{},
		Runner:       alwaysPassVerifier{},
		ModelForTier: func(router.Tier) string { return "test-model" },
	}
	task := models.NewTask("task-2", "fix a security vulnerability in the login flow", 0)

	result := Run(context.Background(), deps, func(string) modelclient.ToolExecutor { return noopExecutor{} }, "/tmp/ws", task, router.TierStrong)

	require.False(t, result.Converged)
	require.Len(t, result.Tickets, 1)
	assert.Contains(t, result.Tickets[0].Description, "priority: high")
}

func TestTruncateTiersRespectsMaxTier(t *testing.T) {
	tiers := truncateTiers(DefaultTiers, router.TierMid)
	assert.Equal(t, []router.Tier{router.TierMid, router.TierMid}, tiers)
}
