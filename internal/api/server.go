// Package api exposes the state machine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mmstr/mmstr/internal/flow"
	"github.com/mmstr/mmstr/internal/store"
)

// Server represents the API server
type Server struct {
	echo   *echo.Echo
	port   int
	flow   *flow.Service
	store  store.Store
	logger zerolog.Logger
}

// NewServer creates a new API server
func NewServer(port int, svc *flow.Service, st store.Store, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:   e,
		port:   port,
		flow:   svc,
		store:  st,
		logger: logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")

	v1.POST("/users", s.createUser)

	v1.POST("/conversations", s.createConversation)
	v1.GET("/conversations", s.listConversations)
	v1.GET("/conversations/:id", s.getConversation)
	v1.POST("/conversations/:id/join", s.joinConversation)
	v1.GET("/conversations/:id/messages", s.listMessages)
	v1.POST("/conversations/:id/messages", s.postMessage)
	v1.GET("/conversations/:id/state", s.getState)

	v1.POST("/messages/:id/interpretations", s.submitInterpretation)
	v1.GET("/messages/:id/interpretations", s.listInterpretations)
	v1.GET("/messages/:id/can-respond", s.canRespond)

	v1.PATCH("/gradings/:id", s.updateGrading)
	v1.POST("/gradings/:id/response", s.createGradingResponse)

	v1.GET("/interpretations/:id/arbitration", s.getArbitration)

	v1.GET("/messages/:id/breakdown", s.getMessageBreakdown)
	v1.GET("/interpretations/:id/breakdown", s.getInterpretationBreakdown)
}

// Start begins the API server and blocks until an interrupt arrives, then
// shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("shutting down the server")
		}
	}()
	s.logger.Info().Int("port", s.port).Msg("api server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
