package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLearningMarkUsedBounds(t *testing.T) {
	l := NewLearning("l1", LearningGotcha, "watch for nil pointer", []string{"nil", "pointer"})
	assert.Equal(t, 0.5, l.Confidence)

	for i := 0; i < 50; i++ {
		l.MarkUsed(true)
	}
	assert.GreaterOrEqual(t, l.Confidence, 0.0)
	assert.LessOrEqual(t, l.Confidence, 1.0)
	assert.Equal(t, 50, l.UsedCount)
	assert.Equal(t, 50, l.SuccessCount)

	l2 := NewLearning("l2", LearningGotcha, "", nil)
	for i := 0; i < 50; i++ {
		l2.MarkUsed(false)
	}
	assert.GreaterOrEqual(t, l2.Confidence, 0.0)
	assert.LessOrEqual(t, l2.Confidence, 1.0)
	assert.Less(t, l2.Confidence, l.Confidence)
}

func TestLearningUsedCountGESuccessCount(t *testing.T) {
	l := NewLearning("l3", LearningFact, "", nil)
	outcomes := []bool{true, false, true, true, false}
	for _, ok := range outcomes {
		l.MarkUsed(ok)
		assert.GreaterOrEqual(t, l.UsedCount, l.SuccessCount)
		assert.GreaterOrEqual(t, l.SuccessCount, 0)
	}
}

func TestKeywordOverlap(t *testing.T) {
	l := NewLearning("l4", LearningPattern, "", []string{"auth", "token", "refresh"})
	terms := map[string]struct{}{"auth": {}, "session": {}}
	assert.Equal(t, 1, l.KeywordOverlap(terms))
}
