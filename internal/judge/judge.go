// Package judge holds the AI adapters: interpretation grading, atomic
// breakdown generation and dispute arbitration. All three speak a strict
// JSON contract with the model and validate it before results reach the
// interaction flow.
package judge

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mmstr/mmstr/internal/store"
)

// ErrInvalidJudgment is returned when the model answered with well-formed
// JSON that violates the contract, such as an unknown arbitration result.
var ErrInvalidJudgment = errors.New("invalid judgment from model")

// Point is one atomic assertion extracted from a text, ordered by its
// position in the original.
type Point struct {
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// Judgment is the grading verdict for a single interpretation attempt.
type Judgment struct {
	SimilarityScore     int    `json:"similarityScore"`
	Passes              bool   `json:"passes"`
	AutoAcceptSuggested bool   `json:"autoAcceptSuggested"`
	Reasoning           string `json:"reasoning"`
}

// Ruling is the terminal arbitration verdict.
type Ruling struct {
	Result      store.ArbitrationResult `json:"result"`
	Explanation string                  `json:"explanation"`
}

// GradeRequest carries everything the grader needs. Context holds the texts
// of the other messages in the conversation, oldest first; the message being
// interpreted must not be among them.
type GradeRequest struct {
	OriginalMessage string
	Interpretation  string
	Context         []string
}

// Dispute carries an arbitration case. AuthorNotes is empty when the author
// gave no rejection notes or when arbitration was forced by attempt
// exhaustion rather than an explicit dispute. OriginalPoints and
// InterpretationPoints, when non-nil, are used as-is instead of generating
// fresh breakdowns, letting callers reuse persisted decompositions.
type Dispute struct {
	OriginalMessage      string
	Interpretation       string
	Context              []string
	AuthorNotes          string
	DisputeReason        string
	OriginalPoints       []Point
	InterpretationPoints []Point
}

// Judge is the AI collaborator of the interaction flow. Implementations
// must be safe for concurrent use.
type Judge interface {
	Grade(ctx context.Context, req GradeRequest) (*Judgment, error)
	Breakdown(ctx context.Context, text string) ([]Point, error)
	Arbitrate(ctx context.Context, d Dispute) (*Ruling, error)
}

// jsonCompleter is the slice of llm.ResilientClient the judge needs.
type jsonCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, target interface{}) error
}

// LLMJudge implements Judge on top of a resilient model client.
type LLMJudge struct {
	client jsonCompleter
	logger zerolog.Logger
}

// NewLLMJudge returns a Judge backed by client.
func NewLLMJudge(client jsonCompleter, logger zerolog.Logger) *LLMJudge {
	return &LLMJudge{client: client, logger: logger}
}
