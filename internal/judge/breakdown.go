package judge

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Breakdown extracts the atomic points of text. Points come back sorted by
// the model's order field and renumbered 0..n-1, so downstream code can rely
// on dense sequential indices regardless of what the model emitted.
func (j *LLMJudge) Breakdown(ctx context.Context, text string) ([]Point, error) {
	userPrompt := strings.Join([]string{
		xmlTag("text", text),
		"\nBreak down this text into atomic points. Respond with JSON array only.",
	}, "\n\n")

	var wire []struct {
		Text  *string  `json:"text"`
		Order *float64 `json:"order"`
	}
	if err := j.client.CompleteJSON(ctx, breakdownSystemPrompt, userPrompt, &wire); err != nil {
		return nil, fmt.Errorf("generate breakdown: %w", err)
	}

	points := make([]Point, 0, len(wire))
	for _, p := range wire {
		if p.Text == nil || p.Order == nil {
			return nil, fmt.Errorf("generate breakdown: point missing text or order: %w", ErrInvalidJudgment)
		}
		points = append(points, Point{Text: *p.Text, Order: int(*p.Order)})
	}

	sort.SliceStable(points, func(i, k int) bool { return points[i].Order < points[k].Order })
	for i := range points {
		points[i].Text = strings.TrimSpace(points[i].Text)
		points[i].Order = i
	}

	j.logger.Debug().Int("points", len(points)).Msg("breakdown generated")
	return points, nil
}
