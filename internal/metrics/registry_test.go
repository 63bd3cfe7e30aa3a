package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistryRegistersGauges(t *testing.T) {
	r := NewRegistry()

	r.ActiveWorkers.Set(3)
	r.MergeQueueDepth.Set(2)
	r.StuckWorkers.Set(1)
	r.SetTierCount("cheap", 2)

	assert.Equal(t, float64(3), testutil.ToFloat64(r.ActiveWorkers))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.MergeQueueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.StuckWorkers))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.TierDistribution.WithLabelValues("cheap")))
}

func TestGathererReturnsUsableGatherer(t *testing.T) {
	r := NewRegistry()
	r.ActiveWorkers.Set(5)

	families, err := r.Gatherer().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
