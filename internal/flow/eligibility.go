package flow

import (
	"context"
	"fmt"

	"github.com/mmstr/mmstr/internal/store"
	"github.com/mmstr/mmstr/internal/validation"
)

// MessageStatus is a display-only projection of where a (message, user)
// pair sits in the state machine. It carries no logic of its own.
type MessageStatus string

const (
	StatusNone                MessageStatus = "none"
	StatusNeedsInterpretation MessageStatus = "needs_interpretation"
	StatusCanRespond          MessageStatus = "can_respond"
	StatusDone                MessageStatus = "done"
)

// Description renders the status for display.
func (m MessageStatus) Description() string {
	switch m {
	case StatusNeedsInterpretation:
		return "Interpretation needed"
	case StatusCanRespond:
		return "Can respond now"
	case StatusDone:
		return "Completed"
	case StatusNone:
		return "No action needed"
	default:
		return ""
	}
}

// CanRespond decides response eligibility. Own messages never allow a
// reply. Messages not requiring interpretation always do. Everything else
// requires an accepted interpretation status; pending, rejected and absent
// all block.
func CanRespond(isOwnMessage, requiresInterpretation bool, status *store.GradingStatus) bool {
	if isOwnMessage {
		return false
	}
	if !requiresInterpretation {
		return true
	}
	return status != nil && *status == store.GradingAccepted
}

// GetMessageStatus projects the same state for display.
func GetMessageStatus(isOwnMessage, hasResponded bool, status *store.GradingStatus) MessageStatus {
	switch {
	case isOwnMessage:
		return StatusNone
	case hasResponded:
		return StatusDone
	case status != nil && *status == store.GradingAccepted:
		return StatusCanRespond
	default:
		return StatusNeedsInterpretation
	}
}

// effectiveStatus resolves the status gating eligibility for the user's
// latest interpretation of a message. A terminal arbitration dominates the
// grading: an accept ruling reads as accepted, a reject ruling as
// rejected. Nil means no interpretation exists yet.
func (s *Service) effectiveStatus(ctx context.Context, messageID string, userID int64) (*store.GradingStatus, *store.Interpretation, error) {
	list, err := s.store.ListInterpretations(ctx, messageID, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(list) == 0 {
		return nil, nil, nil
	}
	latest := list[0]

	arb, err := s.store.GetArbitrationByInterpretation(ctx, latest.ID)
	if err != nil {
		return nil, latest, err
	}
	if arb != nil {
		st := store.GradingRejected
		if arb.Result == store.ArbitrationAccept {
			st = store.GradingAccepted
		}
		return &st, latest, nil
	}

	grading, err := s.store.GetGradingByInterpretation(ctx, latest.ID)
	if err != nil {
		return nil, latest, err
	}
	if grading == nil {
		return nil, latest, nil
	}
	st := grading.Status
	return &st, latest, nil
}

// eligible reports whether userID may respond to msg.
func (s *Service) eligible(ctx context.Context, msg *store.Message, userID int64) (bool, error) {
	if msg.UserID == userID {
		return false, nil
	}
	if !validation.RequiresInterpretation(msg.Text) {
		return true, nil
	}
	status, _, err := s.effectiveStatus(ctx, msg.ID, userID)
	if err != nil {
		return false, err
	}
	return status != nil && *status == store.GradingAccepted, nil
}

// CanRespondToMessage reports whether userID may respond to messageID.
func (s *Service) CanRespondToMessage(ctx context.Context, messageID string, userID int64) (bool, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("can respond: %w", err)
	}
	if msg == nil {
		return false, fmt.Errorf("can respond: message %s: %w", messageID, store.ErrNotFound)
	}
	return s.eligible(ctx, msg, userID)
}

// MessageState is the full per-message view for one user.
type MessageState struct {
	Message         *store.Message          `json:"message"`
	Interpretations []*store.Interpretation `json:"interpretations"`
	LatestGrading   *store.Grading          `json:"latestGrading"`
	GradingResponse *store.GradingResponse  `json:"gradingResponse"`
	Arbitration     *store.Arbitration      `json:"arbitration"`
	CanRespond      bool                    `json:"canRespond"`
	Status          MessageStatus           `json:"status"`
}

// State is the conversation view for one user.
type State struct {
	Conversation *store.Conversation `json:"conversation"`
	Messages     []*MessageState     `json:"messages"`
}

// LoadState assembles the state machine view of a conversation for one
// user: every message with that user's interpretation chain, the gating
// status and the display projection.
func (s *Service) LoadState(ctx context.Context, convoID string, userID int64) (*State, error) {
	convo, err := s.store.GetConversationByID(ctx, convoID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if convo == nil {
		return nil, fmt.Errorf("load state: conversation %s: %w", convoID, store.ErrNotFound)
	}
	msgs, err := s.store.ListMessagesByConversation(ctx, convoID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	// Replies the user already posted, by target message.
	responded := make(map[string]bool)
	for _, m := range msgs {
		if m.UserID == userID && m.ReplyingToMessageID != nil {
			responded[*m.ReplyingToMessageID] = true
		}
	}

	out := &State{Conversation: convo, Messages: make([]*MessageState, 0, len(msgs))}
	for _, m := range msgs {
		ms := &MessageState{Message: m}

		ms.Interpretations, err = s.store.ListInterpretations(ctx, m.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}

		var status *store.GradingStatus
		if len(ms.Interpretations) > 0 {
			latest := ms.Interpretations[0]
			ms.Arbitration, err = s.store.GetArbitrationByInterpretation(ctx, latest.ID)
			if err != nil {
				return nil, fmt.Errorf("load state: %w", err)
			}
			ms.LatestGrading, err = s.store.GetGradingByInterpretation(ctx, latest.ID)
			if err != nil {
				return nil, fmt.Errorf("load state: %w", err)
			}
			if ms.LatestGrading != nil {
				ms.GradingResponse, err = s.store.GetGradingResponseByGrading(ctx, ms.LatestGrading.ID)
				if err != nil {
					return nil, fmt.Errorf("load state: %w", err)
				}
			}
			switch {
			case ms.Arbitration != nil && ms.Arbitration.Result == store.ArbitrationAccept:
				st := store.GradingAccepted
				status = &st
			case ms.Arbitration != nil:
				st := store.GradingRejected
				status = &st
			case ms.LatestGrading != nil:
				st := ms.LatestGrading.Status
				status = &st
			}
		}

		isOwn := m.UserID == userID
		ms.CanRespond = CanRespond(isOwn, validation.RequiresInterpretation(m.Text), status)
		ms.Status = GetMessageStatus(isOwn, responded[m.ID], status)
		out.Messages = append(out.Messages, ms)
	}
	return out, nil
}
