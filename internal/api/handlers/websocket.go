package handlers

import (
	"net/http"

	"github.com/codecade/arena-backend/internal/service"
	"github.com/codecade/arena-backend/internal/websocket"
	"github.com/codecade/arena-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler WebSocket 연결 처리
type WebSocketHandler struct {
	hub         *websocket.Hub
	gateway     *websocket.Gateway
	userService *service.UserService
}

// NewWebSocketHandler WebSocketHandler 생성
func NewWebSocketHandler(hub *websocket.Hub, gateway *websocket.Gateway, userService *service.UserService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		gateway:     gateway,
		userService: userService,
	}
}

// HandleWebSocket WebSocket 연결 엔드포인트
// Presence 등록이 먼저다: 펌프가 돌기 시작하면 곧바로 인바운드 메시지나
// disconnect가 들어올 수 있으므로, 그 전에 플레이어가 등록돼 있어야 한다.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	// 인증 미들웨어에서 설정한 userId 가져오기
	userID := c.GetString("userId")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	presence, err := h.userService.PresenceFor(c.Request.Context(), userID)
	if err != nil {
		logger.Error("Failed to load player profile", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	h.gateway.OnConnect(presence)

	if err := websocket.ServeWs(h.hub, c.Writer, c.Request, userID); err != nil {
		logger.Error("WebSocket upgrade failed", "userId", userID, "error", err)
		h.gateway.OnDisconnect(userID)
		return
	}
}
