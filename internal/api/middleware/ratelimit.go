package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/codecade/arena-backend/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimitConfig Rate Limit 설정
type RateLimitConfig struct {
	Capacity   int64                     // 버스트 허용량
	RefillRate int64                     // 초당 충전량
	KeyFunc    func(*gin.Context) string // 키 추출 함수
}

// DefaultKeyFunc 인증된 경우 userId, 아니면 IP 기반 키
func DefaultKeyFunc(c *gin.Context) string {
	if userID, exists := c.Get("userId"); exists {
		return fmt.Sprintf("user:%v", userID)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// IPKeyFunc IP 기반 키 (인증 전 엔드포인트용)
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimitMiddleware 토큰 버킷 기반 Rate Limiting 미들웨어
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	limiter := ratelimit.NewRateLimiter(config.Capacity, config.RefillRate)

	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(config.Capacity, 10))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d requests per second", config.RefillRate),
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(config.Capacity, 10))
		c.Next()
	}
}

// AuthRateLimit 로그인/회원가입 시도 제한 (IP 기준 5회 버스트, 분당 60회)
func AuthRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   5,
		RefillRate: 1,
		KeyFunc:    IPKeyFunc,
	})
}

// GeneralAPIRateLimit 일반 API 제한 (사용자/IP 기준 초당 10회, 버스트 100회)
func GeneralAPIRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   100,
		RefillRate: 10,
		KeyFunc:    DefaultKeyFunc,
	})
}
