package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmstr/mmstr/internal/judge"
	"github.com/mmstr/mmstr/internal/store"
)

// chain bundles the grading, interpretation and message an arbitration
// ruling applies to.
type chain struct {
	grading        *store.Grading
	interpretation *store.Interpretation
	message        *store.Message
}

// loadChain resolves grading -> interpretation -> message. A broken link is
// a hard NotFound error, unlike the trigger guards which are silent.
func (s *Service) loadChain(ctx context.Context, gradingID string) (*chain, error) {
	grading, err := s.store.GetGradingByID(ctx, gradingID)
	if err != nil {
		return nil, err
	}
	if grading == nil {
		return nil, fmt.Errorf("grading %s: %w", gradingID, store.ErrNotFound)
	}
	in, err := s.store.GetInterpretationByID(ctx, grading.InterpretationID)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("interpretation %s: %w", grading.InterpretationID, store.ErrNotFound)
	}
	msg, err := s.store.GetMessageByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s: %w", in.MessageID, store.ErrNotFound)
	}
	return &chain{grading: grading, interpretation: in, message: msg}, nil
}

// TriggerArbitrationForMaxAttempts fires the final ruling when a rejected
// interpretation was the last allowed attempt. Guards are silent early
// returns: when more attempts remain, or an arbitration already exists,
// nothing happens and no error is reported. Returns the arbitration when
// one exists afterwards, nil when the trigger did not apply.
func (s *Service) TriggerArbitrationForMaxAttempts(ctx context.Context, gradingID string) (*store.Arbitration, error) {
	c, err := s.loadChain(ctx, gradingID)
	if err != nil {
		return nil, fmt.Errorf("max-attempts arbitration: %w", err)
	}
	convo, err := s.store.GetConversationByID(ctx, c.message.ConvoID)
	if err != nil {
		return nil, fmt.Errorf("max-attempts arbitration: %w", err)
	}
	if convo == nil {
		return nil, fmt.Errorf("max-attempts arbitration: conversation %s: %w", c.message.ConvoID, store.ErrNotFound)
	}

	if c.interpretation.AttemptNumber < convo.MaxAttempts {
		return nil, nil
	}
	existing, err := s.store.GetArbitrationByInterpretation(ctx, c.interpretation.ID)
	if err != nil {
		return nil, fmt.Errorf("max-attempts arbitration: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// No author notes here: the synthetic dispute framing stands in for a
	// real dispute text.
	return s.arbitrate(ctx, c, judge.MaxAttemptsDisputeReason(c.interpretation.AttemptNumber), "", nil)
}

// TriggerArbitrationForDispute fires arbitration for a freshly created
// dispute. No attempt-count guard applies; a dispute can force a ruling at
// any attempt number. Idempotent against an existing arbitration.
func (s *Service) TriggerArbitrationForDispute(ctx context.Context, resp *store.GradingResponse) (*store.Arbitration, error) {
	c, err := s.loadChain(ctx, resp.GradingID)
	if err != nil {
		return nil, fmt.Errorf("dispute arbitration: %w", err)
	}
	existing, err := s.store.GetArbitrationByInterpretation(ctx, c.interpretation.ID)
	if err != nil {
		return nil, fmt.Errorf("dispute arbitration: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	return s.arbitrate(ctx, c, resp.Text, c.grading.Notes, &resp.ID)
}

// arbitrate runs the ruling for a chain and persists it. Breakdowns for
// both texts are persisted alongside so the ruling's inputs stay
// inspectable. A concurrent duplicate insert is treated as the other
// writer winning and its row is returned.
func (s *Service) arbitrate(ctx context.Context, c *chain, disputeReason, authorNotes string, gradingResponseID *string) (*store.Arbitration, error) {
	history, err := s.conversationContext(ctx, c.message.ConvoID, c.message.ID)
	if err != nil {
		return nil, fmt.Errorf("arbitrate: %w", err)
	}

	origPoints, err := s.breakdownFor(ctx, store.MessageSubject(c.message.ID), c.message.Text)
	if err != nil {
		return nil, fmt.Errorf("arbitrate: original breakdown: %w", err)
	}
	interpPoints, err := s.breakdownFor(ctx, store.InterpretationSubject(c.interpretation.ID), c.interpretation.Text)
	if err != nil {
		return nil, fmt.Errorf("arbitrate: interpretation breakdown: %w", err)
	}

	ruling, err := s.judge.Arbitrate(ctx, judge.Dispute{
		OriginalMessage:      c.message.Text,
		Interpretation:       c.interpretation.Text,
		Context:              history,
		AuthorNotes:          authorNotes,
		DisputeReason:        disputeReason,
		OriginalPoints:       origPoints,
		InterpretationPoints: interpPoints,
	})
	if err != nil {
		return nil, fmt.Errorf("arbitrate: %w", err)
	}

	arb, err := s.store.CreateArbitration(ctx, &store.Arbitration{
		MessageID:         c.message.ID,
		InterpretationID:  c.interpretation.ID,
		GradingID:         c.grading.ID,
		GradingResponseID: gradingResponseID,
		Result:            ruling.Result,
		RulingStatus:      "completed",
		Explanation:       ruling.Explanation,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return s.store.GetArbitrationByInterpretation(ctx, c.interpretation.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("arbitrate: %w", err)
	}
	s.logger.Info().Str("arbitration_id", arb.ID).Str("interpretation_id", c.interpretation.ID).
		Str("result", string(arb.Result)).Bool("dispute", gradingResponseID != nil).Msg("arbitration ruled")
	return arb, nil
}

// MessageBreakdown returns the atomic points of a message, generating and
// persisting them on first request.
func (s *Service) MessageBreakdown(ctx context.Context, messageID string) ([]judge.Point, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("message breakdown: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message breakdown: message %s: %w", messageID, store.ErrNotFound)
	}
	return s.breakdownFor(ctx, store.MessageSubject(msg.ID), msg.Text)
}

// InterpretationBreakdown returns the atomic points of an interpretation,
// generating and persisting them on first request.
func (s *Service) InterpretationBreakdown(ctx context.Context, interpretationID string) ([]judge.Point, error) {
	in, err := s.store.GetInterpretationByID(ctx, interpretationID)
	if err != nil {
		return nil, fmt.Errorf("interpretation breakdown: %w", err)
	}
	if in == nil {
		return nil, fmt.Errorf("interpretation breakdown: interpretation %s: %w", interpretationID, store.ErrNotFound)
	}
	return s.breakdownFor(ctx, store.InterpretationSubject(in.ID), in.Text)
}

// breakdownFor returns the persisted breakdown points for a subject,
// generating and storing them on first use.
func (s *Service) breakdownFor(ctx context.Context, subject store.BreakdownSubject, text string) ([]judge.Point, error) {
	existing, err := s.store.GetBreakdownBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		rows, err := s.store.ListPointsByBreakdown(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		points := make([]judge.Point, len(rows))
		for i, p := range rows {
			points[i] = judge.Point{Text: p.Text, Order: p.Order}
		}
		return points, nil
	}

	points, err := s.judge.Breakdown(ctx, text)
	if err != nil {
		return nil, err
	}
	b, err := s.store.CreateBreakdown(ctx, subject)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		if _, err := s.store.CreatePoint(ctx, b.ID, p.Text, p.Order); err != nil {
			return nil, err
		}
	}
	return points, nil
}
