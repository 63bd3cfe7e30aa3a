package router

import "strings"

// ComplexityLevel is the fallback classification used when no pattern
// matches directly (spec §4.6.1 complexity assessment, referenced by §4.5).
type ComplexityLevel string

const (
	ComplexityTrivial  ComplexityLevel = "trivial"
	ComplexitySimple   ComplexityLevel = "simple"
	ComplexityStandard ComplexityLevel = "standard"
	ComplexityComplex  ComplexityLevel = "complex"
	ComplexityCritical ComplexityLevel = "critical"
)

var complexityKeywords = map[ComplexityLevel][]string{
	ComplexityTrivial: {"typo", "rename", "comment"},
	ComplexitySimple: {
		"add field", "add flag", "add test", "fix bug", "small",
	},
	ComplexityStandard: {
		"endpoint", "handler", "feature", "validation", "refactor",
	},
	ComplexityComplex: {
		"subsystem", "concurrency", "pipeline", "migration", "integration",
	},
	ComplexityCritical: {
		"architecture", "distributed", "consensus", "data loss", "outage",
	},
}

// estimatedTokensByLevel is a coarse per-level token budget used only for
// Router's estimatedTokens hint; actual consumption is tracked by the
// Worker's agent loop.
var estimatedTokensByLevel = map[ComplexityLevel]int{
	ComplexityTrivial:  2_000,
	ComplexitySimple:   6_000,
	ComplexityStandard: 15_000,
	ComplexityComplex:  35_000,
	ComplexityCritical: 60_000,
}

// AssessComplexity falls back to keyword density and objective length when no
// local-tool, trivial, or escalation pattern matched. The level with the most
// keyword hits wins; with no hit, word count decides (up to 4 words simple,
// up to 12 standard, otherwise complex).
func AssessComplexity(objective string) ComplexityLevel {
	lower := strings.ToLower(objective)

	best := ComplexityStandard
	bestHits := 0
	for level, keywords := range complexityKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = level
		}
	}
	if bestHits > 0 {
		return best
	}

	wordCount := len(strings.Fields(objective))
	switch {
	case wordCount <= 4:
		return ComplexitySimple
	case wordCount <= 12:
		return ComplexityStandard
	default:
		return ComplexityComplex
	}
}

func estimateTokens(level ComplexityLevel) int {
	if tokens, ok := estimatedTokensByLevel[level]; ok {
		return tokens
	}
	return estimatedTokensByLevel[ComplexityStandard]
}
