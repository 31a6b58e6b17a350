package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmstr/mmstr/internal/flow"
	"github.com/mmstr/mmstr/internal/judge"
	"github.com/mmstr/mmstr/internal/store"
)

func newTestServer(fake *judge.Fake) (*Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	svc := flow.NewService(st, fake, zerolog.Nop())
	return NewServer(0, svc, st, zerolog.Nop()), st
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(judge.NewAcceptingFake())
	rec := doJSON(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInterpretationLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(judge.NewAcceptingFake())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/users", `{"name": "ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var author store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &author))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/users", `{"name": "lin"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var interpreter store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &interpreter))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/conversations", `{"title": "planning", "maxAttempts": 3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var convo store.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convo))
	assert.Equal(t, 3, convo.MaxAttempts)

	for _, id := range []int64{author.ID, interpreter.ID} {
		rec = doJSON(t, s, http.MethodPost, "/api/v1/conversations/"+convo.ID+"/join",
			fmt.Sprintf(`{"userId": %d}`, id))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/conversations/"+convo.ID+"/messages",
		fmt.Sprintf(`{"userId": %d, "text": "The budget is gone because we overspent on hosting."}`, author.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg store.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))

	// Not eligible before interpreting.
	rec = doJSON(t, s, http.MethodGet,
		fmt.Sprintf("/api/v1/messages/%s/can-respond?userId=%d", msg.ID, interpreter.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"canRespond": false}`, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/v1/messages/"+msg.ID+"/interpretations",
		fmt.Sprintf(`{"userId": %d, "text": "You mean our money ran out after paying too much for servers."}`, interpreter.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		Interpretation store.Interpretation `json:"interpretation"`
		Grading        store.Grading        `json:"grading"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Interpretation.AttemptNumber)
	assert.Equal(t, store.GradingAccepted, out.Grading.Status)

	rec = doJSON(t, s, http.MethodGet,
		fmt.Sprintf("/api/v1/messages/%s/can-respond?userId=%d", msg.ID, interpreter.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"canRespond": true}`, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet,
		fmt.Sprintf("/api/v1/conversations/%s/state?userId=%d", convo.ID, interpreter.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state flow.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Len(t, state.Messages, 1)
	assert.Equal(t, flow.StatusCanRespond, state.Messages[0].Status)
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(judge.NewRejectingFake())

	// Unknown conversation.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/conversations/nope/join", `{"userId": 1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/users", `{"name": "ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var user store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/conversations", `{"title": "t"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var convo store.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convo))

	// Message failing validation.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/conversations/"+convo.ID+"/messages",
		fmt.Sprintf(`{"userId": %d, "text": "short"}`, user.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")

	// Interpreting your own message is forbidden.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/conversations/"+convo.ID+"/messages",
		fmt.Sprintf(`{"userId": %d, "text": "A perfectly reasonable opening message."}`, user.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg store.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/messages/"+msg.ID+"/interpretations",
		fmt.Sprintf(`{"userId": %d, "text": "Interpreting my own message here."}`, user.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Missing userId query parameter.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/messages/"+msg.ID+"/can-respond", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No arbitration yet.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/interpretations/whatever/arbitration", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
