package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// AutoRejectThreshold is the lexical-overlap ratio above which an
// interpretation is rejected outright. Strictly greater-than: an overlap
// of exactly 70% is still allowed.
const AutoRejectThreshold = 0.7

// SimilarityResult describes the lexical word overlap between an original
// message and an interpretation of it.
type SimilarityResult struct {
	Similarity       float64 `json:"similarity"`
	ShouldAutoReject bool    `json:"shouldAutoReject"`
	MatchingWords    int     `json:"matchingWords"`
	TotalWords       int     `json:"totalWords"`
}

func normalizeWord(word string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// extractWords splits text on whitespace and normalizes each token,
// dropping tokens that normalize to nothing.
func extractWords(text string) []string {
	if text == "" {
		return nil
	}
	var words []string
	for _, raw := range strings.Fields(text) {
		if w := normalizeWord(raw); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// CalculateWordSimilarity measures how much of the interpretation's
// vocabulary is lifted straight from the original. The ratio is the number
// of distinct interpretation tokens that also appear in the original,
// divided by the interpretation's distinct token count.
func CalculateWordSimilarity(originalText, interpretationText string) SimilarityResult {
	originalWords := extractWords(originalText)
	interpretationWords := extractWords(interpretationText)

	if len(originalWords) == 0 || len(interpretationWords) == 0 {
		return SimilarityResult{}
	}

	originalSet := make(map[string]struct{}, len(originalWords))
	for _, w := range originalWords {
		originalSet[w] = struct{}{}
	}
	interpretationSet := make(map[string]struct{}, len(interpretationWords))
	for _, w := range interpretationWords {
		interpretationSet[w] = struct{}{}
	}

	matching := 0
	for w := range interpretationSet {
		if _, ok := originalSet[w]; ok {
			matching++
		}
	}

	similarity := float64(matching) / float64(len(interpretationSet))

	return SimilarityResult{
		Similarity:       similarity,
		ShouldAutoReject: similarity > AutoRejectThreshold,
		MatchingWords:    matching,
		TotalWords:       len(interpretationSet),
	}
}

// IsTooSimilar reports whether the interpretation reuses too much of the
// original's wording.
func IsTooSimilar(originalText, interpretationText string) bool {
	return CalculateWordSimilarity(originalText, interpretationText).ShouldAutoReject
}

// SimilarityDescription renders a human-readable summary of a similarity
// ratio.
func SimilarityDescription(similarity float64) string {
	pct := FormatSimilarityPercent(similarity)
	switch {
	case similarity <= 0.3:
		return fmt.Sprintf("Low similarity (%s matching words)", pct)
	case similarity <= 0.5:
		return fmt.Sprintf("Moderate similarity (%s matching words)", pct)
	case similarity <= AutoRejectThreshold:
		return fmt.Sprintf("High similarity (%s matching words)", pct)
	default:
		return fmt.Sprintf("Too similar (%s matching words - auto-reject)", pct)
	}
}

// FormatSimilarityPercent formats a 0..1 ratio as a rounded percentage.
func FormatSimilarityPercent(similarity float64) string {
	return fmt.Sprintf("%d%%", int(similarity*100+0.5))
}
