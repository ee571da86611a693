package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"colloquy/internal/orchestrator"
	"colloquy/internal/store"
)

// handleDialogue runs the turn loop and streams NDJSON events. Each
// event is one JSON object plus a newline, flushed immediately.
// Validation failures surface as plain JSON errors before any event is
// written; once the stream has started, failures become error events.
func (s *Server) handleDialogue(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	orch, _ := s.current()

	enc := json.NewEncoder(c.Writer)
	streaming := false
	emit := func(event any) error {
		if !streaming {
			// Headers go out with the first event so validation
			// failures can still answer with a plain JSON status.
			c.Header("Content-Type", "application/x-ndjson")
			c.Header("Cache-Control", "no-cache")
		}
		if err := enc.Encode(event); err != nil {
			return err
		}
		streaming = true
		c.Writer.Flush()
		return nil
	}

	_, err := orch.Run(c.Request.Context(), req, emit)
	if err == nil {
		return
	}

	switch {
	case !streaming && errors.Is(err, orchestrator.ErrMissingTopic):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case !streaming && errors.Is(err, store.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case !streaming:
		s.logger.Error("Dialogue request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		s.logger.Error("Dialogue stream aborted", zap.Error(err))
		_ = emit(orchestrator.ErrorEvent{Type: "error", Error: err.Error()})
	}
}

func (s *Server) handleMessages(c *gin.Context) {
	id := c.Param("id")
	conv, err := s.store.GetConversation(c.Request.Context(), id)
	if err != nil {
		s.renderLookupError(c, err)
		return
	}
	msgs, err := s.store.GetMessages(c.Request.Context(), id)
	if err != nil {
		s.renderLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     msgs,
		"totalTurns":   len(msgs),
	})
}

func (s *Server) handleMemory(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetConversation(c.Request.Context(), id); err != nil {
		s.renderLookupError(c, err)
		return
	}
	_, engine := s.current()
	view, err := engine.CompressedView(c.Request.Context(), id)
	if err != nil {
		s.renderLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) renderLookupError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	s.logger.Error("Request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
