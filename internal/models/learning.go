package models

import (
	"math"
	"time"
)

// LearningCategory classifies a Learning entry.
type LearningCategory string

const (
	LearningPattern    LearningCategory = "pattern"
	LearningGotcha     LearningCategory = "gotcha"
	LearningFact       LearningCategory = "fact"
	LearningPreference LearningCategory = "preference"
)

// Learning is a short fact/pattern/gotcha extracted from a prior task,
// retrievable by keyword for inclusion in future Worker prompts.
//
// Confidence is recomputed on every MarkUsed call:
//
//	confidence = 0.5 + 0.1*log(1+usedCount)*(2*successRate-1), clamped to [0,1]
type Learning struct {
	ID           string           `json:"id"`
	Category     LearningCategory `json:"category"`
	Content      string           `json:"content"`
	Keywords     []string         `json:"keywords"`
	Confidence   float64          `json:"confidence"`
	UsedCount    int              `json:"usedCount"`
	SuccessCount int              `json:"successCount"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// NewLearning constructs a Learning with the neutral starting confidence.
func NewLearning(id string, category LearningCategory, content string, keywords []string) Learning {
	return Learning{
		ID:         id,
		Category:   category,
		Content:    content,
		Keywords:   keywords,
		Confidence: 0.5,
		CreatedAt:  time.Now(),
	}
}

// MarkUsed records one retrieval-and-application of the learning and
// recomputes confidence. success reports whether the task that used this
// learning ultimately succeeded.
func (l *Learning) MarkUsed(success bool) {
	l.UsedCount++
	if success {
		l.SuccessCount++
	}
	l.Confidence = recomputeConfidence(l.UsedCount, l.SuccessCount)
}

func recomputeConfidence(usedCount, successCount int) float64 {
	if usedCount <= 0 {
		return 0.5
	}
	successRate := float64(successCount) / float64(usedCount)
	confidence := 0.5 + 0.1*math.Log(1+float64(usedCount))*(2*successRate-1)
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// KeywordOverlap returns the count of keywords shared with terms, used to
// rank Learnings by relevance to an objective.
func (l *Learning) KeywordOverlap(terms map[string]struct{}) int {
	overlap := 0
	for _, kw := range l.Keywords {
		if _, ok := terms[kw]; ok {
			overlap++
		}
	}
	return overlap
}
