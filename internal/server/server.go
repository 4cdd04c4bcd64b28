// Package server exposes tracking sessions over HTTP/JSON.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/balkashynov/tasktick/internal/models"
)

// SessionStore is what the handlers need from the session store
type SessionStore interface {
	Now() time.Time
	StartSession(ctx context.Context, userID string, taskID uint) (*models.Session, error)
	PauseSession(ctx context.Context, userID string, id uint) (*models.Session, error)
	ResumeSession(ctx context.Context, userID string, id uint) (*models.Session, error)
	EndSession(ctx context.Context, userID string, id uint) (*models.Session, error)
	Heartbeat(ctx context.Context, userID string, id uint) (*models.Session, error)
	GetSession(ctx context.Context, userID string, id uint) (*models.Session, error)
	GetActiveSession(ctx context.Context, userID string) (*models.Session, error)
	ListTaskSessions(ctx context.Context, userID string, taskID uint) ([]models.Session, error)
	TaskSummary(ctx context.Context, userID string, taskID uint) (*models.TaskSummary, error)
}

// LivenessChecker auto-pauses a stale session on read
type LivenessChecker interface {
	Check(ctx context.Context, s *models.Session) (*models.Session, error)
}

// Server is the session API server
type Server struct {
	store   SessionStore
	checker LivenessChecker
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates the API server. checker may be nil.
func NewServer(store SessionStore, checker LivenessChecker, verbose bool) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	if verbose {
		router.Use(gin.Logger())
	}
	router.Use(requestID())

	s := &Server{
		store:   store,
		checker: checker,
		router:  router,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api", requireUser())
	{
		api.POST("/sessions", s.handleStart)
		api.GET("/sessions/active", s.handleActive)
		api.GET("/sessions/:id", s.handleGet)
		api.POST("/sessions/:id/pause", s.handlePause)
		api.POST("/sessions/:id/resume", s.handleResume)
		api.POST("/sessions/:id/end", s.handleEnd)
		api.POST("/sessions/:id/heartbeat", s.handleHeartbeat)

		api.GET("/tasks/:id/sessions", s.handleTaskSessions)
		api.GET("/tasks/:id/summary", s.handleTaskSummary)
	}

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
