// internal/handlers/sessions.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kbtrial/internal/display"
	"kbtrial/internal/keyboard"
	"kbtrial/internal/repository"
	"kbtrial/internal/services"
)

// Context keys set by the router middleware.
const (
	ParticipantContextKey = "participant_id"
	CSRFTokenContextKey   = "csrf_token"
)

type SessionHandler struct {
	log    *zap.Logger
	runner *services.Runner
}

func NewSessionHandler(log *zap.Logger, runner *services.Runner) *SessionHandler {
	return &SessionHandler{log: log, runner: runner}
}

// keyEventRequest is a key event posted by the browser client. TrialIndex
// names the trial the participant was looking at; events for any other trial
// are rejected. T is milliseconds since that trial started; when absent the
// server timestamps the event on arrival.
type keyEventRequest struct {
	Key        string             `json:"key" binding:"required"`
	Type       keyboard.EventType `json:"type"`
	Repeat     bool               `json:"repeat"`
	TrialIndex *int               `json:"trialIndex"`
	T          *float64           `json:"t"`
}

func (h *SessionHandler) Start(c *gin.Context) {
	participantID := c.GetString(ParticipantContextKey)

	session, err := h.runner.Start(c.Request.Context(), services.StartOptions{ParticipantID: participantID})
	if err != nil {
		h.log.Error("Failed to start session", zap.String("participant_id", participantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	c.JSON(http.StatusCreated, session.State())
}

func (h *SessionHandler) State(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (h *SessionHandler) Keys(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req keyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key event"})
		return
	}

	switch req.Type {
	case "":
		req.Type = keyboard.KeyDown
	case keyboard.KeyDown, keyboard.KeyUp:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Key event type must be down or up"})
		return
	}

	index := session.State().TrialIndex
	if req.TrialIndex != nil {
		index = *req.TrialIndex
	}
	var offset *time.Duration
	if req.T != nil {
		d := time.Duration(*req.T * float64(time.Millisecond))
		offset = &d
	}

	ev := keyboard.Event{Key: req.Key, Type: req.Type, Repeat: req.Repeat}
	if err := session.DispatchTrial(index, ev, offset); err != nil {
		if errors.Is(err, services.ErrStaleTrial) {
			h.log.Debug("Dropping stale key event",
				zap.String("session_id", session.ID),
				zap.String("key", req.Key),
				zap.Error(err),
			)
			c.JSON(http.StatusConflict, gin.H{"error": "Key event is for a trial that is no longer running", "state": session.State()})
			return
		}
		h.log.Error("Failed to dispatch key event", zap.String("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch key event"})
		return
	}

	c.JSON(http.StatusOK, session.State())
}

func (h *SessionHandler) Results(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      session.ID,
		"state":   session.State(),
		"results": session.Results(),
	})
}

// Index renders an empty display. The client starts a session from it.
func (h *SessionHandler) Index(c *gin.Context) {
	opts := display.PageOptions{
		Title:     h.runner.Protocol().Name,
		CSRFToken: c.GetString(CSRFTokenContextKey),
	}
	h.render(c, opts, display.State{Blank: true})
}

// Page renders the display surface as a standalone document.
func (h *SessionHandler) Page(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	base := "/api/sessions/" + session.ID
	opts := display.PageOptions{
		Title:     h.runner.Protocol().Name,
		StateURL:  base,
		KeysURL:   base + "/keys",
		CSRFToken: c.GetString(CSRFTokenContextKey),
	}

	h.render(c, opts, session.Surface().Snapshot())
}

func (h *SessionHandler) render(c *gin.Context, opts display.PageOptions, st display.State) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := display.Page(opts, st).Render(c.Request.Context(), c.Writer); err != nil {
		h.log.Error("Failed to render page", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
}

// lookup resolves the :id parameter and writes the error response itself when
// the session is unknown or belongs to another participant.
func (h *SessionHandler) lookup(c *gin.Context) (*services.Session, bool) {
	session, err := h.runner.Get(c.Param("id"))
	if errors.Is(err, repository.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	if err != nil {
		h.log.Error("Failed to get session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get session"})
		return nil, false
	}

	if session.ParticipantID != "" && session.ParticipantID != c.GetString(ParticipantContextKey) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}
