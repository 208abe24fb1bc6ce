// Package websocket upgrades authenticated HTTP requests into hub
// clients.
package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/hub"
	"github.com/KyamichProjects/copaint/internal/middleware"
)

// Handler upgrades connections and hands them to the hub.
type Handler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewHandler creates the websocket upgrade handler.
func NewHandler(h *hub.Hub) *Handler {
	if h == nil {
		panic("hub cannot be nil for websocket Handler")
	}
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict origins once the deployed frontend origin is
			// configured.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection handles GET /ws. The Auth middleware has already
// validated the guest token and stored the member identity on the
// context.
func (h *Handler) HandleConnection(c *gin.Context) {
	memberID := c.GetString(middleware.CtxMemberID)
	username := c.GetString(middleware.CtxUsername)
	if memberID == "" || username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"member_id": memberID, "username": username})

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade writes its own HTTP error response.
		logCtx.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, memberID, username)
	if !h.hub.Register(client) {
		logCtx.Error("WS Handler: hub overloaded, rejecting client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: client connected")
}
