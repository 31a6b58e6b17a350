package judge

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// gradeWire mirrors the grading JSON contract. Pointers distinguish a field
// the model omitted from a zero value it sent.
type gradeWire struct {
	SimilarityScore     *float64 `json:"similarityScore"`
	Passes              *bool    `json:"passes"`
	AutoAcceptSuggested *bool    `json:"autoAcceptSuggested"`
	Reasoning           *string  `json:"reasoning"`
}

// Grade asks the model whether the interpretation accurately restates the
// original message. The score is clamped to [0,100]; when the model omits
// autoAcceptSuggested it is derived as score >= 90 with a passing verdict.
func (j *LLMJudge) Grade(ctx context.Context, req GradeRequest) (*Judgment, error) {
	userPrompt := strings.Join([]string{
		xmlTag("conversation_context", conversationContext(req.Context)),
		xmlTag("original_message", req.OriginalMessage),
		xmlTag("interpretation", req.Interpretation),
		"\nEvaluate the interpretation. Respond with JSON only.",
	}, "\n\n")

	var wire gradeWire
	if err := j.client.CompleteJSON(ctx, gradingSystemPrompt, userPrompt, &wire); err != nil {
		return nil, fmt.Errorf("grade interpretation: %w", err)
	}
	if wire.SimilarityScore == nil || wire.Passes == nil || wire.Reasoning == nil {
		return nil, fmt.Errorf("grade interpretation: missing required fields: %w", ErrInvalidJudgment)
	}

	score := int(math.Round(*wire.SimilarityScore))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	out := &Judgment{
		SimilarityScore: score,
		Passes:          *wire.Passes,
		Reasoning:       *wire.Reasoning,
	}
	if wire.AutoAcceptSuggested != nil {
		out.AutoAcceptSuggested = *wire.AutoAcceptSuggested
	} else {
		out.AutoAcceptSuggested = score >= 90 && out.Passes
	}

	j.logger.Debug().Int("score", out.SimilarityScore).Bool("passes", out.Passes).
		Bool("auto_accept", out.AutoAcceptSuggested).Msg("interpretation graded")
	return out, nil
}
