package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/codecade/arena-backend/internal/service"
	"github.com/codecade/arena-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// BattleHandler 배틀 문제 조회 및 히스토리
type BattleHandler struct {
	battles     *service.BattleService
	userService *service.UserService
}

func NewBattleHandler(battles *service.BattleService, userService *service.UserService) *BattleHandler {
	return &BattleHandler{
		battles:     battles,
		userService: userService,
	}
}

// GetQuestions 진행 중인 배틀의 문제 목록 (참가자만, 재접속 복구용)
func (h *BattleHandler) GetQuestions(c *gin.Context) {
	battleID := c.Param("id")
	userID := c.GetString("userId")

	questions, err := h.battles.Questions(battleID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBattleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Battle not found"})
		case errors.Is(err, service.ErrNotAParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this battle"})
		default:
			logger.Error("Failed to get battle questions", "battleId", battleID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get questions"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"battleId":  battleID,
		"questions": questions,
	})
}

// GetHistory 내 배틀 히스토리 (최신순, 페이지네이션)
func (h *BattleHandler) GetHistory(c *gin.Context) {
	userID := c.GetString("userId")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	records, err := h.userService.BattleHistory(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		logger.Error("Failed to get battle history", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get battle history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"battles": records,
		"page":    page,
		"count":   len(records),
	})
}
