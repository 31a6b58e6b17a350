package judge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mmstr/mmstr/internal/store"
)

// rulingWire mirrors the arbitration JSON contract.
type rulingWire struct {
	Result      *string `json:"result"`
	Explanation *string `json:"explanation"`
}

// Arbitrate resolves a dispute. Both texts are first decomposed into atomic
// breakdowns, concurrently, and the ruling prompt compares the breakdowns
// point by point rather than the raw texts.
func (j *LLMJudge) Arbitrate(ctx context.Context, d Dispute) (*Ruling, error) {
	originalPoints := d.OriginalPoints
	interpPoints := d.InterpretationPoints
	if originalPoints == nil || interpPoints == nil {
		var (
			wg                 sync.WaitGroup
			origErr, interpErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if originalPoints == nil {
				originalPoints, origErr = j.Breakdown(ctx, d.OriginalMessage)
			}
		}()
		go func() {
			defer wg.Done()
			if interpPoints == nil {
				interpPoints, interpErr = j.Breakdown(ctx, d.Interpretation)
			}
		}()
		wg.Wait()
		if origErr != nil {
			return nil, fmt.Errorf("arbitrate: original breakdown: %w", origErr)
		}
		if interpErr != nil {
			return nil, fmt.Errorf("arbitrate: interpretation breakdown: %w", interpErr)
		}
	}

	sections := []string{
		xmlTag("conversation_context", conversationContext(d.Context)),
		xmlTag("original_message_breakdown", formatPoints(originalPoints)),
		xmlTag("interpretation_breakdown", formatPoints(interpPoints)),
	}
	if d.AuthorNotes != "" {
		sections = append(sections, xmlTag("author_notes", d.AuthorNotes))
	}
	sections = append(sections,
		xmlTag("dispute_reason", d.DisputeReason),
		"\nEvaluate the dispute. Compare the breakdowns point-by-point. Respond with JSON only.",
	)
	userPrompt := strings.Join(sections, "\n\n")

	var wire rulingWire
	if err := j.client.CompleteJSON(ctx, arbitrationSystemPrompt, userPrompt, &wire); err != nil {
		return nil, fmt.Errorf("arbitrate: %w", err)
	}
	if wire.Result == nil || wire.Explanation == nil {
		return nil, fmt.Errorf("arbitrate: missing required fields: %w", ErrInvalidJudgment)
	}

	result := store.ArbitrationResult(strings.ToLower(strings.TrimSpace(*wire.Result)))
	if !result.Valid() {
		return nil, fmt.Errorf("arbitrate: result %q: %w", *wire.Result, ErrInvalidJudgment)
	}

	j.logger.Info().Str("result", string(result)).
		Int("original_points", len(originalPoints)).
		Int("interpretation_points", len(interpPoints)).
		Msg("arbitration ruled")
	return &Ruling{Result: result, Explanation: *wire.Explanation}, nil
}

// MaxAttemptsDisputeReason builds the synthetic dispute framing used when
// arbitration is forced by attempt exhaustion instead of an explicit dispute.
func MaxAttemptsDisputeReason(attemptCount int) string {
	return fmt.Sprintf("After %d attempts, the interpreter believes this interpretation accurately captures the original message. "+
		"Please evaluate if this interpretation should be accepted or if fundamental misunderstandings persist.", attemptCount)
}
