package learning

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/clipperhouse/uax29/v2/words"

	"github.com/harrison/undercity/internal/models"
)

// gotchaPattern matches imperative sentences a model tends to phrase a
// hard-won constraint with: "always X", "never X", "must X", "watch out
// for X", "note: X".
var gotchaPattern = regexp.MustCompile(`(?i)\b(always\b|never\b|must\b|watch out for\b|note:|remember to\b|be careful\b)[^.\n]*[.\n]?`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "to": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"and": {}, "or": {}, "is": {}, "are": {}, "be": {}, "it": {}, "this": {}, "that": {},
}

// ExtractCandidates scans text (a Worker's final assistant message) for
// gotcha/pattern sentences and proposes Learning entries, unconfirmed and
// unpersisted — the caller decides whether to Store.Add each one.
func ExtractCandidates(idPrefix, text string) []models.Learning {
	matches := gotchaPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	candidates := make([]models.Learning, 0, len(matches))
	for i, m := range matches {
		content := strings.TrimSpace(strings.TrimRight(m, ".\n"))
		if content == "" {
			continue
		}
		category := models.LearningPattern
		lower := strings.ToLower(content)
		if strings.Contains(lower, "never") || strings.Contains(lower, "watch out") || strings.Contains(lower, "careful") {
			category = models.LearningGotcha
		}
		id := idPrefix + "-" + strconv.Itoa(i)
		candidates = append(candidates, models.NewLearning(id, category, content, ExtractKeywords(content)))
	}
	return candidates
}

// ExtractKeywords tokenizes text into lowercase word-boundary tokens via
// uax29, dropping stopwords and non-alphanumeric tokens. Exported so callers
// outside this package (e.g. a Worker LearningSource adapter) can derive
// search keywords from a task objective the same way.
func ExtractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]struct{})
	for word := range words.FromString(strings.ToLower(text)) {
		tok := word.Value()
		if !isWordlike(tok) {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

func isWordlike(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
