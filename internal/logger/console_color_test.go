package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMetricIncludesLabelAndValue(t *testing.T) {
	scheme := newColorScheme()
	out := formatMetric("attempts", 3, scheme)
	assert.Contains(t, out, "attempts")
	assert.Contains(t, out, "3")
}
