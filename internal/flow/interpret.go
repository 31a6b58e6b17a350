package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmstr/mmstr/internal/judge"
	"github.com/mmstr/mmstr/internal/store"
	"github.com/mmstr/mmstr/internal/validation"
)

// SubmitInterpretation records a new interpretation attempt and immediately
// grades it. The attempt number is count of existing attempts plus one and
// may not exceed the conversation's budget. Once the chain for this
// (message, user) pair is settled, by an accepted grading or a terminal
// arbitration, further attempts fail with ErrChainLocked.
//
// The interpretation persists even when grading fails, so a returned error
// can accompany a non-nil interpretation.
func (s *Service) SubmitInterpretation(ctx context.Context, messageID string, userID int64, text string) (*store.Interpretation, *store.Grading, error) {
	if res := validation.ValidateMessage(text); !res.IsValid {
		return nil, nil, &ValidationError{Result: res}
	}

	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, nil, fmt.Errorf("submit interpretation: %w", err)
	}
	if msg == nil {
		return nil, nil, fmt.Errorf("submit interpretation: message %s: %w", messageID, store.ErrNotFound)
	}
	if msg.UserID == userID {
		return nil, nil, ErrOwnMessage
	}

	convo, err := s.store.GetConversationByID(ctx, msg.ConvoID)
	if err != nil {
		return nil, nil, fmt.Errorf("submit interpretation: %w", err)
	}
	if convo == nil {
		return nil, nil, fmt.Errorf("submit interpretation: conversation %s: %w", msg.ConvoID, store.ErrNotFound)
	}

	prior, err := s.store.ListInterpretations(ctx, messageID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("submit interpretation: %w", err)
	}
	if len(prior) > 0 {
		latest := prior[0]
		arb, err := s.store.GetArbitrationByInterpretation(ctx, latest.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("submit interpretation: %w", err)
		}
		if arb != nil {
			return nil, nil, ErrChainLocked
		}
		grading, err := s.store.GetGradingByInterpretation(ctx, latest.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("submit interpretation: %w", err)
		}
		if grading != nil && grading.Status == store.GradingAccepted {
			return nil, nil, ErrChainLocked
		}
	}

	attempt := len(prior) + 1
	if attempt > convo.MaxAttempts {
		return nil, nil, ErrMaxAttempts
	}

	in, err := s.store.CreateInterpretation(ctx, messageID, userID, text, attempt)
	if err != nil {
		return nil, nil, fmt.Errorf("submit interpretation: %w", err)
	}
	s.logger.Info().Str("interpretation_id", in.ID).Str("message_id", messageID).
		Int64("user_id", userID).Int("attempt", attempt).Msg("interpretation submitted")

	grading, err := s.GradeInterpretation(ctx, in.ID)
	if err != nil {
		return in, grading, fmt.Errorf("submit interpretation: %w", err)
	}
	return in, grading, nil
}

// GradeInterpretation runs automatic grading for an interpretation. The
// semantic judgment is always obtained, but the lexical overlap check
// dominates it: an interpretation lifting more than 70% of its wording
// from the original is rejected no matter what the model says. A rejected
// outcome cascades into the max-attempts arbitration trigger.
func (s *Service) GradeInterpretation(ctx context.Context, interpretationID string) (*store.Grading, error) {
	in, err := s.store.GetInterpretationByID(ctx, interpretationID)
	if err != nil {
		return nil, fmt.Errorf("grade interpretation: %w", err)
	}
	if in == nil {
		return nil, fmt.Errorf("grade interpretation: interpretation %s: %w", interpretationID, store.ErrNotFound)
	}
	msg, err := s.store.GetMessageByID(ctx, in.MessageID)
	if err != nil {
		return nil, fmt.Errorf("grade interpretation: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("grade interpretation: message %s: %w", in.MessageID, store.ErrNotFound)
	}

	history, err := s.conversationContext(ctx, msg.ConvoID, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("grade interpretation: %w", err)
	}

	judgment, err := s.judge.Grade(ctx, judge.GradeRequest{
		OriginalMessage: msg.Text,
		Interpretation:  in.Text,
		Context:         history,
	})
	if err != nil {
		return nil, fmt.Errorf("grade interpretation: %w", err)
	}

	sim := validation.CalculateWordSimilarity(msg.Text, in.Text)

	var status store.GradingStatus
	var notes string
	switch {
	case sim.ShouldAutoReject:
		status = store.GradingRejected
		notes = fmt.Sprintf(
			"Automatically rejected: %s word overlap (threshold: 70%%). Restate the message in your own words instead of copying it.",
			validation.FormatSimilarityPercent(sim.Similarity))
	case judgment.AutoAcceptSuggested && judgment.Passes:
		status = store.GradingAccepted
		notes = judgment.Reasoning
	default:
		status = store.GradingPending
		notes = judgment.Reasoning
	}

	grading, err := s.store.CreateGrading(ctx, &store.Grading{
		InterpretationID:    in.ID,
		Status:              status,
		SimilarityScore:     judgment.SimilarityScore,
		AutoAcceptSuggested: judgment.AutoAcceptSuggested,
		Notes:               notes,
	})
	if err != nil {
		return nil, fmt.Errorf("grade interpretation: %w", err)
	}
	s.logger.Info().Str("grading_id", grading.ID).Str("interpretation_id", in.ID).
		Str("status", string(status)).Int("score", grading.SimilarityScore).
		Bool("lexical_reject", sim.ShouldAutoReject).Msg("interpretation graded")

	if status == store.GradingRejected {
		if _, err := s.TriggerArbitrationForMaxAttempts(ctx, grading.ID); err != nil {
			return grading, fmt.Errorf("grade interpretation: arbitration trigger: %w", err)
		}
	}
	return grading, nil
}

// UpdateGrading applies the author's manual decision to a grading. A
// transition to rejected fires the max-attempts arbitration trigger, same
// as an automatic rejection.
func (s *Service) UpdateGrading(ctx context.Context, gradingID string, update store.GradingUpdate) (*store.Grading, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("update grading: unknown status %q", *update.Status)
	}
	grading, err := s.store.UpdateGrading(ctx, gradingID, update)
	if err != nil {
		return nil, fmt.Errorf("update grading: %w", err)
	}
	s.logger.Info().Str("grading_id", gradingID).Str("status", string(grading.Status)).Msg("grading updated")

	if update.Status != nil && *update.Status == store.GradingRejected {
		if _, err := s.TriggerArbitrationForMaxAttempts(ctx, gradingID); err != nil {
			return grading, fmt.Errorf("update grading: arbitration trigger: %w", err)
		}
	}
	return grading, nil
}

// CreateGradingResponse records the interpreter's dispute of a rejection
// and synchronously triggers arbitration. At most one dispute per grading;
// disputing is only legal while the grading stands rejected and the chain
// is not already settled.
func (s *Service) CreateGradingResponse(ctx context.Context, gradingID, text string) (*store.GradingResponse, *store.Arbitration, error) {
	grading, err := s.store.GetGradingByID(ctx, gradingID)
	if err != nil {
		return nil, nil, fmt.Errorf("create grading response: %w", err)
	}
	if grading == nil {
		return nil, nil, fmt.Errorf("create grading response: grading %s: %w", gradingID, store.ErrNotFound)
	}
	if grading.Status != store.GradingRejected {
		return nil, nil, ErrNotRejected
	}
	arb, err := s.store.GetArbitrationByInterpretation(ctx, grading.InterpretationID)
	if err != nil {
		return nil, nil, fmt.Errorf("create grading response: %w", err)
	}
	if arb != nil {
		return nil, nil, ErrChainLocked
	}

	resp, err := s.store.CreateGradingResponse(ctx, gradingID, text)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, nil, ErrAlreadyDisputed
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create grading response: %w", err)
	}
	s.logger.Info().Str("response_id", resp.ID).Str("grading_id", gradingID).Msg("grading disputed")

	arb, err = s.TriggerArbitrationForDispute(ctx, resp)
	if err != nil {
		return resp, nil, fmt.Errorf("create grading response: arbitration trigger: %w", err)
	}
	return resp, arb, nil
}
