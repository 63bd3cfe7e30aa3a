// Package router implements the Router: a pure mapping from a task objective
// to an execution tier and cost estimate (spec §4.5).
package router

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/words"
)

// Tier is a semantic capability class, cheapest to most expensive:
// local-tools < cheap < mid < strong.
type Tier string

const (
	TierLocalTools Tier = "local-tools"
	TierCheap      Tier = "cheap"
	TierMid        Tier = "mid"
	TierStrong     Tier = "strong"
)

// Decision is the result of routeTask.
type Decision struct {
	Tier              Tier
	Reason            string
	Confidence        float64
	EstimatedTokens   int
	CanParallelize    bool
	SuggestedBatchSize int
}

var localToolPatterns = []string{
	"format", "lint", "typecheck", "type check", "test", "build", "organize import", "import-organize",
}

var trivialPatterns = []string{
	"typo", "comment tweak", "rename", "version bump", "bump version", "remove unused", "unused import", "unused variable",
}

var escalationPatterns = []string{
	"security", "auth", "encrypt", "credential", "payment",
	"migrate database", "breaking change", "redesign", "refactor architecture",
}

// RouteTask classifies objective into an execution tier.
func RouteTask(objective string) Decision {
	tokens := tokenize(objective)

	if matchAny(tokens, localToolPatterns) {
		return Decision{
			Tier:               TierLocalTools,
			Reason:             "local-tool pattern",
			Confidence:         0.9,
			EstimatedTokens:    0,
			CanParallelize:     true,
			SuggestedBatchSize: 10,
		}
	}

	if matchAny(tokens, trivialPatterns) {
		return Decision{
			Tier:               TierCheap,
			Reason:             "trivial",
			Confidence:         0.8,
			EstimatedTokens:    estimateTokens(ComplexityTrivial),
			CanParallelize:     true,
			SuggestedBatchSize: 5,
		}
	}

	if matchAny(tokens, escalationPatterns) {
		return Decision{
			Tier:            TierStrong,
			Reason:          "escalation pattern",
			Confidence:      0.85,
			EstimatedTokens: estimateTokens(ComplexityCritical),
			CanParallelize:  false,
		}
	}

	level := AssessComplexity(objective)
	return complexityDecision(level)
}

func complexityDecision(level ComplexityLevel) Decision {
	d := Decision{
		Reason:          "complexity assessment: " + string(level),
		Confidence:      0.6,
		EstimatedTokens: estimateTokens(level),
	}
	switch level {
	case ComplexityTrivial:
		d.Tier, d.CanParallelize, d.SuggestedBatchSize = TierCheap, true, 5
	case ComplexitySimple:
		d.Tier, d.CanParallelize, d.SuggestedBatchSize = TierCheap, true, 3
	case ComplexityStandard:
		d.Tier, d.CanParallelize, d.SuggestedBatchSize = TierMid, true, 2
	case ComplexityComplex:
		d.Tier, d.CanParallelize = TierMid, false
	case ComplexityCritical:
		d.Tier, d.CanParallelize = TierStrong, false
	default:
		d.Tier, d.CanParallelize = TierMid, false
	}
	return d
}

// tokenize lowercases and word-segments objective using Unicode word
// boundaries, filtering out pure-punctuation/whitespace segments.
func tokenize(objective string) []string {
	lower := strings.ToLower(objective)
	var out []string
	for word := range words.FromString(lower) {
		if word == "" {
			continue
		}
		r := []rune(word)[0]
		if !isWordStart(r) {
			continue
		}
		out = append(out, word)
	}
	return out
}

func isWordStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// matchAny reports whether objective's joined token stream contains any of
// patterns as a substring match (patterns may themselves be multi-word).
func matchAny(tokens []string, patterns []string) bool {
	joined := " " + strings.Join(tokens, " ") + " "
	for _, p := range patterns {
		if strings.Contains(joined, " "+p+" ") || strings.Contains(joined, p) {
			return true
		}
	}
	return false
}
