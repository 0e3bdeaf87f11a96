package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tablelane/tablelane-api/internal/notification"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/response"
	"github.com/tablelane/tablelane-api/pkg/utils"
	"go.uber.org/zap"
)

// SocketHandler upgrades kitchen and counter stations onto the
// notification fan-out.
type SocketHandler struct {
	broadcaster *notification.Broadcaster
	jwtManager  *utils.JWTManager
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewSocketHandler creates a new websocket handler
func NewSocketHandler(broadcaster *notification.Broadcaster, jwtManager *utils.JWTManager, logger *zap.Logger) *SocketHandler {
	return &SocketHandler{
		broadcaster: broadcaster,
		jwtManager:  jwtManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by CORS on the rest of the API; the
			// socket authenticates with a token instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve authenticates the station and joins it to its tenant's room.
// Browsers cannot set headers on websocket dials, so the token rides
// in a query parameter.
func (h *SocketHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "Token is required")
		return
	}

	claims, err := h.jwtManager.ValidateAccessToken(token)
	if err != nil {
		response.Unauthorized(c, "Invalid or expired token")
		return
	}
	c.Set("tenant_id", claims.TenantID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("tenant_id", claims.TenantID.String()),
			zap.Error(err))
		return
	}

	notification.ServeClient(h.broadcaster, claims.TenantID, conn, h.logger)
}
