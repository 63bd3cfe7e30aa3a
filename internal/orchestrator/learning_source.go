package orchestrator

import (
	"context"

	"github.com/harrison/undercity/internal/learning"
	"github.com/harrison/undercity/internal/worker"
)

// learningSourceAdapter adapts a *learning.Store to worker.LearningSource by
// deriving search keywords from the objective the same way ExtractCandidates
// derives them from a final assistant message.
type learningSourceAdapter struct {
	store *learning.Store
}

// NewLearningSource wraps store as a worker.LearningSource. Returns nil when
// store is nil so callers can assign the result straight into
// worker.Dependencies.Learnings without a separate nil check.
func NewLearningSource(store *learning.Store) worker.LearningSource {
	if store == nil {
		return nil
	}
	return &learningSourceAdapter{store: store}
}

// Relevant looks up Learnings whose keywords overlap the objective's, most
// relevant first, capped at limit. Errors are swallowed: a lookup failure
// just means the prompt goes out without a Learnings section.
func (a *learningSourceAdapter) Relevant(objective string, limit int) []worker.LearningRef {
	keywords := learning.ExtractKeywords(objective)
	if len(keywords) == 0 {
		return nil
	}

	found, err := a.store.SearchByKeywords(context.Background(), keywords, limit)
	if err != nil || len(found) == 0 {
		return nil
	}

	refs := make([]worker.LearningRef, 0, len(found))
	for _, l := range found {
		refs = append(refs, worker.LearningRef{Content: l.Content})
	}
	return refs
}
