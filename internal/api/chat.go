package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoventa/dealerbot/internal/agent"
	"github.com/autoventa/dealerbot/internal/session"
)

type chatRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// handleChatMessage runs one exchange synchronously, bypassing the queue.
// Meant for testing the agent without a Twilio round trip; it writes to the
// same session the worker would.
func (s *Server) handleChatMessage(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and message required"})
		return
	}

	// Append the user turn first so the session exists before the agent runs;
	// tools write metadata (e.g. the cars last shown) to it mid-invoke.
	s.sessions.AppendTurn(req.Phone, session.Turn{Role: session.RoleUser, Content: req.Message})

	var history []session.Turn
	if snap, ok := s.sessions.Snapshot(req.Phone); ok {
		history = snap.History(0)
	}
	if n := len(history); n > 0 && history[n-1].Role == session.RoleUser {
		history = history[:n-1]
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ChatTimeout)
	defer cancel()
	reply, err := s.gateway.Invoke(ctx, req.Phone, history, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrRejected) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}

	s.sessions.AppendTurn(req.Phone, session.Turn{Role: session.RoleAssistant, Content: reply.Text})

	c.JSON(http.StatusOK, gin.H{"reply": reply.Text, "tool_trace": reply.ToolTrace})
}

func (s *Server) handleGetSession(c *gin.Context) {
	snap, ok := s.sessions.Snapshot(c.Param("phone"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for that phone"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.sessions.Delete(c.Param("phone")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for that phone"})
		return
	}
	c.Status(http.StatusNoContent)
}
