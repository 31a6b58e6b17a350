// Package flow orchestrates the interpretation, grading and arbitration
// state machine over the store and the AI judge. All legal state
// transitions for a (message, user) pair go through this package.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mmstr/mmstr/internal/judge"
	"github.com/mmstr/mmstr/internal/store"
	"github.com/mmstr/mmstr/internal/validation"
)

// Policy defaults applied when a conversation is created without explicit
// values.
const (
	DefaultMaxAttempts      = 3
	DefaultParticipantLimit = 20
)

// Service sequences the state machine. Safe for concurrent use as long as
// the store and judge are.
type Service struct {
	store  store.Store
	judge  judge.Judge
	logger zerolog.Logger
}

// NewService wires a flow service.
func NewService(st store.Store, j judge.Judge, logger zerolog.Logger) *Service {
	return &Service{store: st, judge: j, logger: logger}
}

// RegisterUser creates a user with the given display name.
func (s *Service) RegisterUser(ctx context.Context, name string) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("register user: name must not be empty")
	}
	return s.store.CreateUser(ctx, name)
}

// CreateConversation creates a conversation. Non-positive policy values
// fall back to the defaults.
func (s *Service) CreateConversation(ctx context.Context, title string, maxAttempts, participantLimit int) (*store.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("create conversation: title must not be empty")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if participantLimit <= 0 {
		participantLimit = DefaultParticipantLimit
	}
	return s.store.CreateConversation(ctx, title, maxAttempts, participantLimit)
}

// JoinConversation adds a user as a participant, enforcing the participant
// limit. Joining a conversation the user is already in is a no-op.
func (s *Service) JoinConversation(ctx context.Context, convoID string, userID int64) error {
	convo, err := s.store.GetConversationByID(ctx, convoID)
	if err != nil {
		return fmt.Errorf("join conversation: %w", err)
	}
	if convo == nil {
		return fmt.Errorf("join conversation %s: %w", convoID, store.ErrNotFound)
	}
	n, err := s.store.CountParticipants(ctx, convoID)
	if err != nil {
		return fmt.Errorf("join conversation: count participants: %w", err)
	}
	if n >= convo.ParticipantLimit {
		return ErrConversationFull
	}
	err = s.store.AddParticipant(ctx, convoID, userID)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}

// PostMessage validates and creates a message. When replyingTo is set, the
// author must be eligible to respond to that message.
func (s *Service) PostMessage(ctx context.Context, convoID string, userID int64, text string, replyingTo *string) (*store.Message, error) {
	if res := validation.ValidateMessage(text); !res.IsValid {
		return nil, &ValidationError{Result: res}
	}
	convo, err := s.store.GetConversationByID(ctx, convoID)
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	if convo == nil {
		return nil, fmt.Errorf("post message: conversation %s: %w", convoID, store.ErrNotFound)
	}
	if replyingTo != nil {
		target, err := s.store.GetMessageByID(ctx, *replyingTo)
		if err != nil {
			return nil, fmt.Errorf("post message: %w", err)
		}
		if target == nil {
			return nil, fmt.Errorf("post message: reply target %s: %w", *replyingTo, store.ErrNotFound)
		}
		ok, err := s.eligible(ctx, target, userID)
		if err != nil {
			return nil, fmt.Errorf("post message: %w", err)
		}
		if !ok {
			return nil, ErrNotEligible
		}
	}
	msg, err := s.store.CreateMessage(ctx, text, userID, convoID, replyingTo)
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	s.logger.Info().Str("message_id", msg.ID).Str("convo_id", convoID).
		Int64("user_id", userID).Bool("reply", replyingTo != nil).Msg("message posted")
	return msg, nil
}

// conversationContext returns the texts of all messages in the
// conversation except the one being judged, oldest first.
func (s *Service) conversationContext(ctx context.Context, convoID, excludeMessageID string) ([]string, error) {
	msgs, err := s.store.ListMessagesByConversation(ctx, convoID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == excludeMessageID {
			continue
		}
		texts = append(texts, m.Text)
	}
	return texts, nil
}
