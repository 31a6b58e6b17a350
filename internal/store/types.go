package store

import "time"

// GradingStatus is the accept/reject/pending judgment on an interpretation.
type GradingStatus string

const (
	GradingPending  GradingStatus = "pending"
	GradingAccepted GradingStatus = "accepted"
	GradingRejected GradingStatus = "rejected"
)

// Valid reports whether s is one of the closed set of grading statuses.
func (s GradingStatus) Valid() bool {
	switch s {
	case GradingPending, GradingAccepted, GradingRejected:
		return true
	}
	return false
}

// ArbitrationResult is the terminal accept/reject ruling.
type ArbitrationResult string

const (
	ArbitrationAccept ArbitrationResult = "accept"
	ArbitrationReject ArbitrationResult = "reject"
)

// Valid reports whether r is a recognized ruling.
func (r ArbitrationResult) Valid() bool {
	return r == ArbitrationAccept || r == ArbitrationReject
}

// User is a participant in the discussion platform.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is a discussion thread and the policy holder for
// interpretation attempts.
type Conversation struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	MaxAttempts      int       `json:"maxAttempts"`
	ParticipantLimit int       `json:"participantLimit"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Participation links a user to a conversation.
type Participation struct {
	UserID  int64  `json:"userId"`
	ConvoID string `json:"convoId"`
}

// Message is a single message in a conversation. Immutable once created.
type Message struct {
	ID                  string    `json:"id"`
	Text                string    `json:"text"`
	UserID              int64     `json:"userId"`
	ConvoID             string    `json:"convoId"`
	ReplyingToMessageID *string   `json:"replyingToMessageId"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Interpretation is a user's restatement of another user's message.
// AttemptNumber is 1-based and strictly increasing per (message, user).
type Interpretation struct {
	ID            string    `json:"id"`
	MessageID     string    `json:"messageId"`
	UserID        int64     `json:"userId"`
	Text          string    `json:"text"`
	AttemptNumber int       `json:"attemptNumber"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Grading is the judgment on an interpretation. Exactly one per
// interpretation; status and notes may be updated by the author's manual
// decision after automatic grading.
type Grading struct {
	ID                  string        `json:"id"`
	InterpretationID    string        `json:"interpretationId"`
	Status              GradingStatus `json:"status"`
	SimilarityScore     int           `json:"similarityScore"`
	AutoAcceptSuggested bool          `json:"autoAcceptSuggested"`
	Notes               string        `json:"notes,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
}

// GradingUpdate carries the mutable grading fields for a partial update.
// Nil fields are left unchanged.
type GradingUpdate struct {
	Status *GradingStatus
	Notes  *string
}

// GradingResponse is the interpreter's dispute of a rejection. At most one
// per grading; creating one triggers arbitration.
type GradingResponse struct {
	ID        string    `json:"id"`
	GradingID string    `json:"gradingId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Arbitration is the terminal AI ruling on an interpretation. At most one
// per interpretation. GradingResponseID is nil when arbitration was forced
// by max-attempts exhaustion rather than a dispute.
type Arbitration struct {
	ID                string            `json:"id"`
	MessageID         string            `json:"messageId"`
	InterpretationID  string            `json:"interpretationId"`
	GradingID         string            `json:"gradingId"`
	GradingResponseID *string           `json:"gradingResponseId"`
	Result            ArbitrationResult `json:"result"`
	RulingStatus      string            `json:"rulingStatus"`
	Explanation       string            `json:"explanation"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// SubjectKind tags what a breakdown decomposes.
type SubjectKind string

const (
	SubjectMessage        SubjectKind = "message"
	SubjectInterpretation SubjectKind = "interpretation"
)

// BreakdownSubject identifies the one entity a breakdown belongs to. The
// tagged form makes the message-XOR-interpretation exclusivity structural
// instead of a pair of nullable foreign keys.
type BreakdownSubject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

// MessageSubject returns the subject for a message breakdown.
func MessageSubject(messageID string) BreakdownSubject {
	return BreakdownSubject{Kind: SubjectMessage, ID: messageID}
}

// InterpretationSubject returns the subject for an interpretation breakdown.
func InterpretationSubject(interpretationID string) BreakdownSubject {
	return BreakdownSubject{Kind: SubjectInterpretation, ID: interpretationID}
}

// Breakdown is an AI-derived decomposition of a message or interpretation
// into atomic points.
type Breakdown struct {
	ID        string           `json:"id"`
	Subject   BreakdownSubject `json:"subject"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Point is one atomic assertion within a breakdown.
type Point struct {
	ID          string `json:"id"`
	BreakdownID string `json:"breakdownId"`
	Text        string `json:"text"`
	Order       int    `json:"order"`
}
