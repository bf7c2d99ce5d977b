package handlers

import (
	"net/http"
	"strconv"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/internal/repository"
	"github.com/codecade/arena-backend/internal/service"
	"github.com/codecade/arena-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

const defaultLeaderboardSize = 100

// LeaderboardHandler 레이팅 순위 조회
// Redis 정렬 집합을 우선 사용하고, Redis가 없으면 SQL로 폴백한다.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
	ratingRepo  *repository.RatingRepository
}

func NewLeaderboardHandler(leaderboard *service.LeaderboardService, ratingRepo *repository.RatingRepository) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		ratingRepo:  ratingRepo,
	}
}

// GetLeaderboard 상위 플레이어 목록
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit := defaultLeaderboardSize
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= defaultLeaderboardSize {
			limit = parsed
		}
	}

	var entries []models.LeaderboardEntry
	var err error

	if h.leaderboard != nil {
		entries, err = h.leaderboard.Top(c.Request.Context(), limit)
		if err != nil {
			logger.Warn("Redis leaderboard unavailable, falling back to SQL", "error", err)
		}
	}

	if h.leaderboard == nil || err != nil {
		entries, err = h.ratingRepo.TopRatings(c.Request.Context(), limit)
		if err != nil {
			logger.Error("Failed to load leaderboard", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load leaderboard",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"count":       len(entries),
	})
}
