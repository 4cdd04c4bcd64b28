package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/tracking"
)

// Error codes returned in error bodies
const (
	codeConflict     = "conflict"
	codeInvalidState = "invalid_state"
	codeNotFound     = "not_found"
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal"
)

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type startRequest struct {
	TaskID uint `json:"task_id" binding:"required"`
}

type sessionList struct {
	Count    int                  `json:"count"`
	Sessions []models.SessionView `json:"sessions"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeBadRequest, Error: "task_id is required"})
		return
	}

	session, err := s.store.StartSession(c.Request.Context(), currentUser(c), req.TaskID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, s.view(session))
}

func (s *Server) handleActive(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := s.store.GetActiveSession(ctx, currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if session == nil {
		c.Status(http.StatusNoContent)
		return
	}

	if s.checker != nil {
		session, err = s.checker.Check(ctx, session)
		if err != nil {
			s.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, s.view(session))
}

func (s *Server) handleGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	session, err := s.store.GetSession(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, s.view(session))
}

func (s *Server) handlePause(c *gin.Context) {
	s.transition(c, s.store.PauseSession)
}

func (s *Server) handleResume(c *gin.Context) {
	s.transition(c, s.store.ResumeSession)
}

func (s *Server) handleEnd(c *gin.Context) {
	s.transition(c, s.store.EndSession)
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	s.transition(c, s.store.Heartbeat)
}

func (s *Server) handleTaskSessions(c *gin.Context) {
	taskID, ok := pathID(c)
	if !ok {
		return
	}

	sessions, err := s.store.ListTaskSessions(c.Request.Context(), currentUser(c), taskID)
	if err != nil {
		s.fail(c, err)
		return
	}

	list := sessionList{Count: len(sessions), Sessions: make([]models.SessionView, 0, len(sessions))}
	for i := range sessions {
		list.Sessions = append(list.Sessions, s.view(&sessions[i]))
	}

	c.JSON(http.StatusOK, list)
}

func (s *Server) handleTaskSummary(c *gin.Context) {
	taskID, ok := pathID(c)
	if !ok {
		return
	}

	summary, err := s.store.TaskSummary(c.Request.Context(), currentUser(c), taskID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

type transitionFunc func(ctx context.Context, userID string, id uint) (*models.Session, error)

// transition runs one state machine operation on the session named in the path
func (s *Server) transition(c *gin.Context, apply transitionFunc) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	session, err := apply(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, s.view(session))
}

func (s *Server) view(session *models.Session) models.SessionView {
	return tracking.View(session, s.store.Now())
}

// fail maps an error to its status code and writes the error body
func (s *Server) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, codeInternal
	switch {
	case errors.Is(err, tracking.ErrConflict):
		status, code = http.StatusConflict, codeConflict
	case errors.Is(err, tracking.ErrInvalidState):
		status, code = http.StatusUnprocessableEntity, codeInvalidState
	case errors.Is(err, tracking.ErrNotFound):
		status, code = http.StatusNotFound, codeNotFound
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("server: %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}

	c.JSON(status, errorBody{Code: code, Error: msg})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeBadRequest, Error: "invalid id '" + c.Param("id") + "'"})
		return 0, false
	}
	return uint(id), true
}
