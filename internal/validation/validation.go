package validation

import (
	"fmt"
	"strings"
)

// Message bounds enforced on every message and interpretation.
const (
	MinChars = 10
	MaxChars = 280
	MinWords = 3
)

// FailureReason identifies which bound a message violated.
type FailureReason string

const (
	ReasonEmpty       FailureReason = "empty"
	ReasonTooShort    FailureReason = "too_short"
	ReasonTooFewWords FailureReason = "too_few_words"
	ReasonTooLong     FailureReason = "too_long"
)

// Result holds the outcome of message validation.
type Result struct {
	IsValid      bool          `json:"isValid"`
	CharCount    int           `json:"charCount"`
	WordCount    int           `json:"wordCount"`
	Reason       FailureReason `json:"reason,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// CountWords counts whitespace-separated words, ignoring empty tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ValidateMessage checks a message against the character and word bounds.
// Checks run in a fixed order (empty, min chars, min words, max chars) and
// the first failure wins.
func ValidateMessage(text string) Result {
	charCount := len(text)
	wordCount := CountWords(text)

	if charCount == 0 {
		return Result{
			CharCount:    charCount,
			WordCount:    wordCount,
			Reason:       ReasonEmpty,
			ErrorMessage: "Message cannot be empty",
		}
	}

	if charCount < MinChars {
		return Result{
			CharCount:    charCount,
			WordCount:    wordCount,
			Reason:       ReasonTooShort,
			ErrorMessage: fmt.Sprintf("Message must be at least %d characters (currently %d)", MinChars, charCount),
		}
	}

	if wordCount < MinWords {
		return Result{
			CharCount:    charCount,
			WordCount:    wordCount,
			Reason:       ReasonTooFewWords,
			ErrorMessage: fmt.Sprintf("Message must have at least %d words (currently %d)", MinWords, wordCount),
		}
	}

	if charCount > MaxChars {
		return Result{
			CharCount:    charCount,
			WordCount:    wordCount,
			Reason:       ReasonTooLong,
			ErrorMessage: fmt.Sprintf("Message must not exceed %d characters (currently %d)", MaxChars, charCount),
		}
	}

	return Result{IsValid: true, CharCount: charCount, WordCount: wordCount}
}

// MeetsMinimum reports whether text satisfies the minimum character and
// word requirements.
func MeetsMinimum(text string) bool {
	return len(text) >= MinChars && CountWords(text) >= MinWords
}

// WithinMaximum reports whether text fits inside the character cap.
func WithinMaximum(text string) bool {
	return len(text) <= MaxChars
}

// RequiresInterpretation reports whether a message must be interpreted
// before it can be responded to. Every message requires interpretation
// regardless of length.
func RequiresInterpretation(text string) bool {
	return true
}

// RemainingChars returns how many characters are left before the cap.
// Negative when the text is already over the limit.
func RemainingChars(text string) int {
	return MaxChars - len(text)
}
