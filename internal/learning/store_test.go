package learning

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/undercity/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "learnings.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndSearchByKeywords(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	l := models.NewLearning("l1", models.LearningGotcha, "never commit without staging first", []string{"commit", "stage", "git"})
	require.NoError(t, store.Add(ctx, l))

	results, err := store.SearchByKeywords(ctx, []string{"git", "commit"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "l1", results[0].ID)
}

func TestSearchByKeywordsRanksByOverlapThenConfidence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	low := models.NewLearning("low", models.LearningPattern, "retry with backoff", []string{"retry", "backoff"})
	high := models.NewLearning("high", models.LearningPattern, "retry with backoff and jitter", []string{"retry", "backoff", "jitter"})
	require.NoError(t, store.Add(ctx, low))
	require.NoError(t, store.Add(ctx, high))

	results, err := store.SearchByKeywords(ctx, []string{"retry", "backoff", "jitter"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].ID, "higher keyword overlap should rank first")
}

func TestMarkUsedPersistsRecomputedConfidence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	l := models.NewLearning("l1", models.LearningFact, "trunk verification runs typecheck only", []string{"trunk"})
	require.NoError(t, store.Add(ctx, l))

	require.NoError(t, store.MarkUsed(ctx, "l1", true))

	updated, err := store.get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.UsedCount)
	assert.Equal(t, 1, updated.SuccessCount)
	assert.Greater(t, updated.Confidence, 0.5)
}

func TestSearchByKeywordsReturnsNilForEmptyTerms(t *testing.T) {
	store := openTestStore(t)
	results, err := store.SearchByKeywords(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}
