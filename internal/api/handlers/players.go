package handlers

import (
	"net/http"

	"github.com/codecade/arena-backend/internal/service"
	"github.com/codecade/arena-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// PlayerHandler 온라인 플레이어 및 플레이어 통계 조회
type PlayerHandler struct {
	presence    *service.PresenceService
	userService *service.UserService
}

func NewPlayerHandler(presence *service.PresenceService, userService *service.UserService) *PlayerHandler {
	return &PlayerHandler{
		presence:    presence,
		userService: userService,
	}
}

// ListOnline 현재 접속 중인 플레이어 목록 (요청자 본인 제외)
func (h *PlayerHandler) ListOnline(c *gin.Context) {
	userID := c.GetString("userId")

	snapshot := h.presence.Snapshot()
	players := snapshot[:0]
	for _, p := range snapshot {
		if p.PlayerID != userID {
			players = append(players, p)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"players": players,
		"count":   len(players),
	})
}

// GetMyStats 내 배틀 통계 (레이팅, 승/패, 총 배틀 수)
func (h *PlayerHandler) GetMyStats(c *gin.Context) {
	userID := c.GetString("userId")

	stats, err := h.userService.GetBattleStats(c.Request.Context(), userID)
	if err != nil {
		logger.Error("Failed to get battle stats", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get battle stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
