package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteTaskLocalTool(t *testing.T) {
	d := RouteTask("run lint across the repository")
	assert.Equal(t, TierLocalTools, d.Tier)
	assert.Equal(t, 0, d.EstimatedTokens)
	assert.True(t, d.CanParallelize)
	assert.Equal(t, 10, d.SuggestedBatchSize)
}

func TestRouteTaskTrivial(t *testing.T) {
	d := RouteTask("fix a typo in the README")
	assert.Equal(t, TierCheap, d.Tier)
	assert.Equal(t, "trivial", d.Reason)
}

func TestRouteTaskEscalation(t *testing.T) {
	d := RouteTask("redesign the authentication and credential storage flow")
	assert.Equal(t, TierStrong, d.Tier)
	assert.False(t, d.CanParallelize)
}

func TestRouteTaskFallsBackToComplexityAssessment(t *testing.T) {
	d := RouteTask("add a new field to the user profile response")
	assert.Equal(t, TierMid, d.Tier)
	assert.Contains(t, d.Reason, "complexity assessment")
}

func TestRouteTaskFallsBackToSimpleForShortObjective(t *testing.T) {
	d := RouteTask("tweak the footer")
	assert.Equal(t, TierCheap, d.Tier)
	assert.Equal(t, 3, d.SuggestedBatchSize)
}

func TestRouteTaskTierOrdering(t *testing.T) {
	order := map[Tier]int{TierLocalTools: 0, TierCheap: 1, TierMid: 2, TierStrong: 3}
	assert.Less(t, order[TierLocalTools], order[TierCheap])
	assert.Less(t, order[TierCheap], order[TierMid])
	assert.Less(t, order[TierMid], order[TierStrong])
}

func TestAssessComplexityKeywordMatch(t *testing.T) {
	assert.Equal(t, ComplexityCritical, AssessComplexity("rework the overall system architecture"))
	assert.Equal(t, ComplexityComplex, AssessComplexity("coordinate a multi-step migration pipeline"))
}
