// Package http holds the small REST surface in front of the websocket
// relay: guest session issuance and health.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/auth"
)

// SessionHandler issues guest tokens for the websocket endpoint.
type SessionHandler struct {
	tokens *auth.Service
}

func NewSessionHandler(tokens *auth.Service) *SessionHandler {
	if tokens == nil {
		panic("token service cannot be nil for SessionHandler")
	}
	return &SessionHandler{tokens: tokens}
}

// CreateSessionRequest carries the display name for a new guest session.
type CreateSessionRequest struct {
	Username string `json:"username" binding:"required,min=1,max=24"`
}

// CreateSessionResponse returns the signed token and the member id bound
// to it.
type CreateSessionResponse struct {
	Token    string `json:"token"`
	MemberID string `json:"member_id"`
	Username string `json:"username"`
}

// CreateSession handles POST /api/session.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: username is required (1-24 chars)"})
		return
	}

	token, memberID, err := h.tokens.Issue(req.Username)
	if err != nil {
		logrus.WithError(err).Error("Handler.CreateSession: failed to issue guest token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"member_id": memberID,
		"username":  req.Username,
	}).Info("Handler.CreateSession: guest session issued")
	c.JSON(http.StatusOK, CreateSessionResponse{
		Token:    token,
		MemberID: memberID,
		Username: req.Username,
	})
}
