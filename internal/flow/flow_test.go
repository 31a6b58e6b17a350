package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmstr/mmstr/internal/judge"
	"github.com/mmstr/mmstr/internal/store"
)

const (
	authorID      = int64(1)
	interpreterID = int64(2)

	originalText   = "The deployment failed because the config file was missing entirely."
	paraphraseText = "You are saying the rollout broke since a settings document was absent."
	verbatimText   = "The deployment failed because the config file was missing."
)

type fixture struct {
	svc   *Service
	store *store.InMemoryStore
	fake  *judge.Fake
	convo *store.Conversation
	msg   *store.Message
}

func setup(t *testing.T, fake *judge.Fake, maxAttempts int) *fixture {
	t.Helper()
	st := store.NewInMemoryStore()
	svc := NewService(st, fake, zerolog.Nop())
	ctx := context.Background()

	convo, err := svc.CreateConversation(ctx, "budget planning", maxAttempts, 0)
	require.NoError(t, err)
	require.NoError(t, svc.JoinConversation(ctx, convo.ID, authorID))
	require.NoError(t, svc.JoinConversation(ctx, convo.ID, interpreterID))

	msg, err := svc.PostMessage(ctx, convo.ID, authorID, originalText, nil)
	require.NoError(t, err)

	return &fixture{svc: svc, store: st, fake: fake, convo: convo, msg: msg}
}

func TestSubmitInterpretationAssignsAttemptNumbers(t *testing.T) {
	f := setup(t, judge.NewRejectingFake(), 3)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		in, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
		require.NoError(t, err)
		assert.Equal(t, want, in.AttemptNumber)
		// Semantic failure without lexical overlap leaves the author to decide.
		assert.Equal(t, store.GradingPending, grading.Status)
	}

	_, _, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.ErrorIs(t, err, ErrMaxAttempts)
}

func TestSubmitInterpretationGuards(t *testing.T) {
	f := setup(t, judge.NewAcceptingFake(), 3)
	ctx := context.Background()

	_, _, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, authorID, paraphraseText)
	require.ErrorIs(t, err, ErrOwnMessage)

	var verr *ValidationError
	_, _, err = f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, "short")
	require.ErrorAs(t, err, &verr)

	_, _, err = f.svc.SubmitInterpretation(ctx, "missing", interpreterID, paraphraseText)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLexicalAutoRejectDominatesSemanticJudgment(t *testing.T) {
	// The model would accept outright, but the near-verbatim copy must be
	// rejected regardless.
	f := setup(t, judge.NewAcceptingFake(), 3)
	ctx := context.Background()

	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, verbatimText)
	require.NoError(t, err)
	assert.Equal(t, store.GradingRejected, grading.Status)
	assert.Contains(t, grading.Notes, "Automatically rejected")
	assert.Contains(t, grading.Notes, "threshold: 70%")
	// The semantic score is still recorded for the author to see.
	assert.Equal(t, 95, grading.SimilarityScore)
	assert.True(t, grading.AutoAcceptSuggested)
}

func TestAutoAcceptPath(t *testing.T) {
	f := setup(t, judge.NewAcceptingFake(), 3)
	ctx := context.Background()

	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.NoError(t, err)
	assert.Equal(t, store.GradingAccepted, grading.Status)
	assert.Equal(t, "interpretation restates the original", grading.Notes)

	// The chain is settled; no further attempts.
	_, _, err = f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.ErrorIs(t, err, ErrChainLocked)
}

func TestPassingWithoutAutoAcceptStaysPending(t *testing.T) {
	fake := &judge.Fake{Judgment: judge.Judgment{
		SimilarityScore: 80,
		Passes:          true,
		Reasoning:       "close enough but not certain",
	}}
	f := setup(t, fake, 3)

	_, grading, err := f.svc.SubmitInterpretation(context.Background(), f.msg.ID, interpreterID, paraphraseText)
	require.NoError(t, err)
	assert.Equal(t, store.GradingPending, grading.Status)
}

func TestMaxAttemptsArbitrationOnFinalRejection(t *testing.T) {
	fake := judge.NewAcceptingFake()
	fake.Ruling = judge.Ruling{Result: store.ArbitrationReject, Explanation: "copy of the original"}
	f := setup(t, fake, 1)
	ctx := context.Background()

	// Attempt 1 of 1, lexically rejected: arbitration fires automatically.
	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, verbatimText)
	require.NoError(t, err)
	require.Equal(t, store.GradingRejected, grading.Status)

	arb, err := f.store.GetArbitrationByInterpretation(ctx, grading.InterpretationID)
	require.NoError(t, err)
	require.NotNil(t, arb)
	assert.Nil(t, arb.GradingResponseID)
	assert.Equal(t, store.ArbitrationReject, arb.Result)

	require.Len(t, f.fake.ArbitrateCalls, 1)
	assert.Contains(t, f.fake.ArbitrateCalls[0].DisputeReason, "After 1 attempts")
	assert.Empty(t, f.fake.ArbitrateCalls[0].AuthorNotes)

	// Second trigger is a no-op: same row, no extra model call.
	again, err := f.svc.TriggerArbitrationForMaxAttempts(ctx, grading.ID)
	require.NoError(t, err)
	assert.Equal(t, arb.ID, again.ID)
	assert.Len(t, f.fake.ArbitrateCalls, 1)
}

func TestRejectionBeforeFinalAttemptDoesNotArbitrate(t *testing.T) {
	f := setup(t, judge.NewAcceptingFake(), 3)
	ctx := context.Background()

	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, verbatimText)
	require.NoError(t, err)
	require.Equal(t, store.GradingRejected, grading.Status)

	arb, err := f.store.GetArbitrationByInterpretation(ctx, grading.InterpretationID)
	require.NoError(t, err)
	assert.Nil(t, arb)
	assert.Empty(t, f.fake.ArbitrateCalls)
}

func TestManualRejectionTriggersArbitration(t *testing.T) {
	fake := judge.NewRejectingFake()
	fake.Ruling = judge.Ruling{Result: store.ArbitrationAccept, Explanation: "interpretation was fair"}
	f := setup(t, fake, 1)
	ctx := context.Background()

	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.NoError(t, err)
	require.Equal(t, store.GradingPending, grading.Status)

	rejected := store.GradingRejected
	notes := "you dropped the part about the config file"
	_, err = f.svc.UpdateGrading(ctx, grading.ID, store.GradingUpdate{Status: &rejected, Notes: &notes})
	require.NoError(t, err)

	arb, err := f.store.GetArbitrationByInterpretation(ctx, grading.InterpretationID)
	require.NoError(t, err)
	require.NotNil(t, arb)
	assert.Equal(t, store.ArbitrationAccept, arb.Result)
}

func TestDisputeTriggersArbitrationAtAnyAttempt(t *testing.T) {
	fake := judge.NewRejectingFake()
	fake.Ruling = judge.Ruling{Result: store.ArbitrationAccept, Explanation: "rejection was unfair"}
	f := setup(t, fake, 3)
	ctx := context.Background()

	// Attempt 1 of 3, manually rejected: no max-attempts arbitration yet.
	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.NoError(t, err)
	rejected := store.GradingRejected
	notes := "not what I meant"
	grading, err = f.svc.UpdateGrading(ctx, grading.ID, store.GradingUpdate{Status: &rejected, Notes: &notes})
	require.NoError(t, err)
	require.Empty(t, f.fake.ArbitrateCalls)

	resp, arb, err := f.svc.CreateGradingResponse(ctx, grading.ID, "I restated every claim you made")
	require.NoError(t, err)
	require.NotNil(t, arb)
	require.NotNil(t, arb.GradingResponseID)
	assert.Equal(t, resp.ID, *arb.GradingResponseID)

	require.Len(t, f.fake.ArbitrateCalls, 1)
	call := f.fake.ArbitrateCalls[0]
	assert.Equal(t, "I restated every claim you made", call.DisputeReason)
	assert.Equal(t, notes, call.AuthorNotes)

	// The chain is terminal: no further attempts, no second dispute.
	_, _, err = f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.ErrorIs(t, err, ErrChainLocked)
	_, _, err = f.svc.CreateGradingResponse(ctx, grading.ID, "one more try")
	require.ErrorIs(t, err, ErrChainLocked)
}

func TestDisputeGuards(t *testing.T) {
	f := setup(t, judge.NewRejectingFake(), 3)
	ctx := context.Background()

	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.NoError(t, err)

	// Pending gradings cannot be disputed.
	_, _, err = f.svc.CreateGradingResponse(ctx, grading.ID, "dispute of a pending grading")
	require.ErrorIs(t, err, ErrNotRejected)

	rejected := store.GradingRejected
	_, err = f.svc.UpdateGrading(ctx, grading.ID, store.GradingUpdate{Status: &rejected})
	require.NoError(t, err)

	// A ruling failure leaves the dispute recorded; retrying the dispute
	// itself reports the duplicate.
	f.fake.RulingErr = errors.New("model unavailable")
	resp, _, err := f.svc.CreateGradingResponse(ctx, grading.ID, "first dispute")
	require.Error(t, err)
	require.NotNil(t, resp)

	_, _, err = f.svc.CreateGradingResponse(ctx, grading.ID, "second dispute")
	require.ErrorIs(t, err, ErrAlreadyDisputed)
}

func TestCanRespondDecision(t *testing.T) {
	accepted := store.GradingAccepted
	pending := store.GradingPending
	rejected := store.GradingRejected

	assert.False(t, CanRespond(true, true, &accepted), "own message always blocks")
	assert.False(t, CanRespond(true, false, nil), "own message blocks even without interpretation requirement")
	assert.True(t, CanRespond(false, false, nil), "no interpretation required")
	assert.False(t, CanRespond(false, true, nil), "no interpretation yet")
	assert.False(t, CanRespond(false, true, &pending))
	assert.False(t, CanRespond(false, true, &rejected))
	assert.True(t, CanRespond(false, true, &accepted))
}

func TestArbitrationRulingGatesEligibility(t *testing.T) {
	for _, tc := range []struct {
		name   string
		result store.ArbitrationResult
		want   bool
	}{
		{"accept ruling unlocks response", store.ArbitrationAccept, true},
		{"reject ruling stands permanently", store.ArbitrationReject, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fake := judge.NewAcceptingFake()
			fake.Ruling = judge.Ruling{Result: tc.result, Explanation: "ruling"}
			f := setup(t, fake, 1)
			ctx := context.Background()

			_, _, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, verbatimText)
			require.NoError(t, err)

			ok, err := f.svc.CanRespondToMessage(ctx, f.msg.ID, interpreterID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestPostReplyRequiresEligibility(t *testing.T) {
	f := setup(t, judge.NewAcceptingFake(), 3)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, f.convo.ID, interpreterID, "I disagree with that entirely.", &f.msg.ID)
	require.ErrorIs(t, err, ErrNotEligible)

	_, _, err = f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.NoError(t, err)

	reply, err := f.svc.PostMessage(ctx, f.convo.ID, interpreterID, "I disagree with that entirely.", &f.msg.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyingToMessageID)
}

func TestLoadStateProjection(t *testing.T) {
	f := setup(t, judge.NewAcceptingFake(), 3)
	ctx := context.Background()

	// Before any interpretation.
	st, err := f.svc.LoadState(ctx, f.convo.ID, interpreterID)
	require.NoError(t, err)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, StatusNeedsInterpretation, st.Messages[0].Status)
	assert.False(t, st.Messages[0].CanRespond)

	// Author sees their own message as status-free.
	st, err = f.svc.LoadState(ctx, f.convo.ID, authorID)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, st.Messages[0].Status)

	// Accepted interpretation unlocks the reply.
	_, _, err = f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, paraphraseText)
	require.NoError(t, err)
	st, err = f.svc.LoadState(ctx, f.convo.ID, interpreterID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanRespond, st.Messages[0].Status)
	assert.True(t, st.Messages[0].CanRespond)
	require.NotNil(t, st.Messages[0].LatestGrading)

	// Replying marks it done.
	_, err = f.svc.PostMessage(ctx, f.convo.ID, interpreterID, "Understood, let us fix the config.", &f.msg.ID)
	require.NoError(t, err)
	st, err = f.svc.LoadState(ctx, f.convo.ID, interpreterID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, st.Messages[0].Status)
}

func TestJoinConversationLimit(t *testing.T) {
	st := store.NewInMemoryStore()
	svc := NewService(st, judge.NewAcceptingFake(), zerolog.Nop())
	ctx := context.Background()

	convo, err := svc.CreateConversation(ctx, "tight room", 3, 1)
	require.NoError(t, err)

	require.NoError(t, svc.JoinConversation(ctx, convo.ID, authorID))
	// Re-joining is a no-op, not a second seat.
	require.NoError(t, svc.JoinConversation(ctx, convo.ID, authorID))
	require.ErrorIs(t, svc.JoinConversation(ctx, convo.ID, interpreterID), ErrConversationFull)
}

func TestArbitrationPersistsBreakdowns(t *testing.T) {
	f := setup(t, judge.NewAcceptingFake(), 1)
	ctx := context.Background()

	_, grading, err := f.svc.SubmitInterpretation(ctx, f.msg.ID, interpreterID, verbatimText)
	require.NoError(t, err)

	mb, err := f.store.GetBreakdownBySubject(ctx, store.MessageSubject(f.msg.ID))
	require.NoError(t, err)
	require.NotNil(t, mb)
	points, err := f.store.ListPointsByBreakdown(ctx, mb.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, points)

	ib, err := f.store.GetBreakdownBySubject(ctx, store.InterpretationSubject(grading.InterpretationID))
	require.NoError(t, err)
	require.NotNil(t, ib)
}
