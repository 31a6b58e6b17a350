package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mmstr/mmstr/internal/flow"
	"github.com/mmstr/mmstr/internal/store"
)

// httpError maps a flow error to a status code and JSON body.
func httpError(c echo.Context, err error) error {
	var verr *flow.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":      verr.Result.ErrorMessage,
			"validation": verr.Result,
		})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, flow.ErrOwnMessage),
		errors.Is(err, flow.ErrNotEligible),
		errors.Is(err, flow.ErrNotRejected):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, flow.ErrMaxAttempts),
		errors.Is(err, flow.ErrChainLocked),
		errors.Is(err, flow.ErrAlreadyDisputed),
		errors.Is(err, flow.ErrConversationFull):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func userIDParam(c echo.Context) (int64, error) {
	raw := c.QueryParam("userId")
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "userId query parameter is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "userId must be an integer")
	}
	return id, nil
}

func (s *Server) createUser(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	user, err := s.flow.RegisterUser(c.Request().Context(), req.Name)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (s *Server) createConversation(c echo.Context) error {
	var req struct {
		Title            string `json:"title"`
		MaxAttempts      int    `json:"maxAttempts"`
		ParticipantLimit int    `json:"participantLimit"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	convo, err := s.flow.CreateConversation(c.Request().Context(), req.Title, req.MaxAttempts, req.ParticipantLimit)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, convo)
}

func (s *Server) listConversations(c echo.Context) error {
	convos, err := s.store.ListConversations(c.Request().Context())
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, convos)
}

func (s *Server) getConversation(c echo.Context) error {
	convo, err := s.store.GetConversationByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	if convo == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}
	return c.JSON(http.StatusOK, convo)
}

func (s *Server) joinConversation(c echo.Context) error {
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.flow.JoinConversation(c.Request().Context(), c.Param("id"), req.UserID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listMessages(c echo.Context) error {
	msgs, err := s.store.ListMessagesByConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) postMessage(c echo.Context) error {
	var req struct {
		UserID              int64   `json:"userId"`
		Text                string  `json:"text"`
		ReplyingToMessageID *string `json:"replyingToMessageId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg, err := s.flow.PostMessage(c.Request().Context(), c.Param("id"), req.UserID, req.Text, req.ReplyingToMessageID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) getState(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	state, err := s.flow.LoadState(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) submitInterpretation(c echo.Context) error {
	var req struct {
		UserID int64  `json:"userId"`
		Text   string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, grading, err := s.flow.SubmitInterpretation(c.Request().Context(), c.Param("id"), req.UserID, req.Text)
	if err != nil {
		// The interpretation may have been recorded even when grading or
		// the arbitration cascade failed.
		if in != nil {
			s.logger.Warn().Err(err).Str("interpretation_id", in.ID).Msg("interpretation recorded but grading incomplete")
		}
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"interpretation": in,
		"grading":        grading,
	})
}

func (s *Server) listInterpretations(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	list, err := s.store.ListInterpretations(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) canRespond(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	ok, err := s.flow.CanRespondToMessage(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"canRespond": ok})
}

func (s *Server) updateGrading(c echo.Context) error {
	var req struct {
		Status *string `json:"status"`
		Notes  *string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	update := store.GradingUpdate{Notes: req.Notes}
	if req.Status != nil {
		st := store.GradingStatus(*req.Status)
		update.Status = &st
	}
	grading, err := s.flow.UpdateGrading(c.Request().Context(), c.Param("id"), update)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, grading)
}

func (s *Server) createGradingResponse(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, arb, err := s.flow.CreateGradingResponse(c.Request().Context(), c.Param("id"), req.Text)
	if err != nil {
		if resp != nil {
			s.logger.Warn().Err(err).Str("response_id", resp.ID).Msg("dispute recorded but arbitration incomplete")
		}
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"gradingResponse": resp,
		"arbitration":     arb,
	})
}

func (s *Server) getMessageBreakdown(c echo.Context) error {
	points, err := s.flow.MessageBreakdown(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, points)
}

func (s *Server) getInterpretationBreakdown(c echo.Context) error {
	points, err := s.flow.InterpretationBreakdown(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, points)
}

func (s *Server) getArbitration(c echo.Context) error {
	arb, err := s.store.GetArbitrationByInterpretation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	if arb == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no arbitration for this interpretation"})
	}
	return c.JSON(http.StatusOK, arb)
}
