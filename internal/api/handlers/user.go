package handlers

import (
	"errors"
	"net/http"

	"github.com/codecade/arena-backend/internal/service"
	"github.com/codecade/arena-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetCurrentUser 내 프로필 조회
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString("userId")

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		logger.Error("Failed to get profile", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}
