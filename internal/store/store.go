package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by conditional creates when the uniqueness
// guard (one arbitration per interpretation, one response per grading, one
// participation per user+conversation) is already satisfied.
var ErrAlreadyExists = errors.New("already exists")

// Store is the persistence collaborator for all MMSTR entities. Both the
// postgres and in-memory implementations satisfy it; lookups that miss
// return (nil, nil) so callers can distinguish absence from failure
// without error matching, mirroring row-or-null storage semantics.
type Store interface {
	// Users
	CreateUser(ctx context.Context, name string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// Conversations
	CreateConversation(ctx context.Context, title string, maxAttempts, participantLimit int) (*Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]*Conversation, error)

	// Participations
	AddParticipant(ctx context.Context, convoID string, userID int64) error
	CountParticipants(ctx context.Context, convoID string) (int, error)
	ListParticipants(ctx context.Context, convoID string) ([]*Participation, error)

	// Messages
	CreateMessage(ctx context.Context, text string, userID int64, convoID string, replyingTo *string) (*Message, error)
	GetMessageByID(ctx context.Context, id string) (*Message, error)
	ListMessagesByConversation(ctx context.Context, convoID string) ([]*Message, error)

	// Interpretations
	CreateInterpretation(ctx context.Context, messageID string, userID int64, text string, attemptNumber int) (*Interpretation, error)
	GetInterpretationByID(ctx context.Context, id string) (*Interpretation, error)
	// ListInterpretations returns a user's interpretations of a message,
	// newest attempt first.
	ListInterpretations(ctx context.Context, messageID string, userID int64) ([]*Interpretation, error)

	// Gradings
	CreateGrading(ctx context.Context, g *Grading) (*Grading, error)
	GetGradingByID(ctx context.Context, id string) (*Grading, error)
	GetGradingByInterpretation(ctx context.Context, interpretationID string) (*Grading, error)
	UpdateGrading(ctx context.Context, id string, update GradingUpdate) (*Grading, error)

	// Grading responses (disputes)
	CreateGradingResponse(ctx context.Context, gradingID, text string) (*GradingResponse, error)
	GetGradingResponseByGrading(ctx context.Context, gradingID string) (*GradingResponse, error)

	// Arbitrations. CreateArbitration is conditional: it returns
	// ErrAlreadyExists without writing when an arbitration for the same
	// interpretation is already present.
	CreateArbitration(ctx context.Context, a *Arbitration) (*Arbitration, error)
	GetArbitrationByInterpretation(ctx context.Context, interpretationID string) (*Arbitration, error)

	// Breakdowns and points
	CreateBreakdown(ctx context.Context, subject BreakdownSubject) (*Breakdown, error)
	GetBreakdownBySubject(ctx context.Context, subject BreakdownSubject) (*Breakdown, error)
	CreatePoint(ctx context.Context, breakdownID, text string, order int) (*Point, error)
	ListPointsByBreakdown(ctx context.Context, breakdownID string) ([]*Point, error)
}
