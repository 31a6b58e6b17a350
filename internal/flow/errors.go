package flow

import (
	"errors"
	"fmt"

	"github.com/mmstr/mmstr/internal/validation"
)

var (
	// ErrOwnMessage is returned when a user tries to interpret their own
	// message.
	ErrOwnMessage = errors.New("cannot interpret your own message")

	// ErrMaxAttempts is returned when a new interpretation would exceed the
	// conversation's attempt budget.
	ErrMaxAttempts = errors.New("maximum interpretation attempts reached")

	// ErrChainLocked is returned when an interpretation chain has already
	// been settled by arbitration or an accepted grading. No further
	// attempts or disputes are possible.
	ErrChainLocked = errors.New("interpretation chain already settled")

	// ErrAlreadyDisputed is returned on a second dispute of the same
	// grading.
	ErrAlreadyDisputed = errors.New("grading already disputed")

	// ErrNotRejected is returned when disputing a grading that is not in
	// the rejected state.
	ErrNotRejected = errors.New("only rejected gradings can be disputed")

	// ErrNotEligible is returned when posting a reply to a message the
	// user has not earned the right to respond to.
	ErrNotEligible = errors.New("interpretation not yet accepted for this message")

	// ErrConversationFull is returned when a join would exceed the
	// conversation's participant limit.
	ErrConversationFull = errors.New("conversation participant limit reached")
)

// ValidationError reports a message text that failed the length or word
// bounds. The embedded result carries counts for the caller to surface.
type ValidationError struct {
	Result validation.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s", e.Result.ErrorMessage)
}
