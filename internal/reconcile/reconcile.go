// Package reconcile implements the `reconcile` command: scanning recent
// trunk commits for ones that already satisfy a still-pending Task, so the
// Task Board doesn't dispatch a Worker to redo work a human (or an earlier,
// uncoordinated run) already did directly. Grounded on the Router's
// uax29-based tokenization (internal/router) via the Learning package's
// shared keyword extractor.
package reconcile

import (
	"github.com/harrison/undercity/internal/learning"
	"github.com/harrison/undercity/internal/models"
)

// DefaultThreshold is the minimum token-overlap ratio (matched / objective
// token count) for a commit message to be considered a match.
const DefaultThreshold = 0.5

// Match pairs a pending Task with the commit message judged to already
// satisfy it.
type Match struct {
	Task          models.Task
	CommitMessage string
	Overlap       float64
}

// FindMatches compares each pending task's objective against every commit
// message, keeping the best-overlapping commit per task when it clears
// threshold.
func FindMatches(tasks []models.Task, commitMessages []string, threshold float64) []Match {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var matches []Match
	for _, task := range tasks {
		if task.Status != models.StatusPending {
			continue
		}
		objectiveTokens := toSet(learning.ExtractKeywords(task.Objective))
		if len(objectiveTokens) == 0 {
			continue
		}

		bestOverlap := 0.0
		bestMessage := ""
		for _, msg := range commitMessages {
			overlap := overlapRatio(objectiveTokens, learning.ExtractKeywords(msg))
			if overlap > bestOverlap {
				bestOverlap = overlap
				bestMessage = msg
			}
		}

		if bestOverlap >= threshold {
			matches = append(matches, Match{Task: task, CommitMessage: bestMessage, Overlap: bestOverlap})
		}
	}
	return matches
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func overlapRatio(objectiveTokens map[string]struct{}, commitTokens []string) float64 {
	if len(objectiveTokens) == 0 {
		return 0
	}
	matched := 0
	for _, t := range commitTokens {
		if _, ok := objectiveTokens[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(objectiveTokens))
}
