package api

import (
	"context"

	"github.com/codecade/arena-backend/internal/api/handlers"
	"github.com/codecade/arena-backend/internal/api/middleware"
	"github.com/codecade/arena-backend/internal/config"
	"github.com/codecade/arena-backend/internal/repository"
	"github.com/codecade/arena-backend/internal/service"
	"github.com/codecade/arena-backend/internal/websocket"
	"github.com/codecade/arena-backend/pkg/database"
	"github.com/codecade/arena-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SetupRouter API 라우터 설정
// redisClient가 nil이면 리더보드는 SQL 폴백으로만 동작한다.
func SetupRouter(cfg *config.Config, db *database.DB, redisClient *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Repository 초기화
	userRepo := repository.NewUserRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	battleRepo := repository.NewBattleRepository(db)
	questionRepo := repository.NewQuestionRepository(db)

	// Service 초기화
	eloService := service.NewELOService(cfg.RatingFloor)
	presenceService := service.NewPresenceService()
	queueService := service.NewQueueService(presenceService)
	userService := service.NewUserService(userRepo, ratingRepo, battleRepo)
	battleService := service.NewBattleService(
		questionRepo,
		ratingRepo,
		battleRepo,
		eloService,
		presenceService,
		cfg.BattleQuestionCount,
		cfg.BattleTimeLimit,
	)

	// Leaderboard Service 초기화 (Redis 있을 때만)
	var leaderboardService *service.LeaderboardService
	if redisClient != nil {
		leaderboardService = service.NewLeaderboardService(redisClient)
		battleService.SetLeaderboard(leaderboardService)

		// 기존 레이팅으로 리더보드 시드
		ctx := context.Background()
		if entries, err := ratingRepo.TopRatings(ctx, 1000); err != nil {
			logger.Warn("Failed to load ratings for leaderboard seed", "error", err)
		} else if err := leaderboardService.Seed(ctx, entries); err != nil {
			logger.Warn("Failed to seed leaderboard", "error", err)
		} else {
			logger.Info("Leaderboard seeded", "entries", len(entries))
		}
	}

	// WebSocket Hub/Gateway 초기화 및 시작
	wsHub := websocket.NewHub()
	wsGateway := websocket.NewGateway(wsHub, presenceService, queueService, battleService)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Handler 초기화
	authHandler := handlers.NewAuthHandler(userService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	playerHandler := handlers.NewPlayerHandler(presenceService, userService)
	battleHandler := handlers.NewBattleHandler(battleService, userService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService, ratingRepo)
	wsHandler := handlers.NewWebSocketHandler(wsHub, wsGateway, userService)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint
		v1.GET("/ws", middleware.Auth(cfg), wsHandler.HandleWebSocket)

		// Auth routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
		}

		// Player routes
		players := v1.Group("/players")
		players.Use(middleware.Auth(cfg), middleware.GeneralAPIRateLimit())
		{
			players.GET("", playerHandler.ListOnline)
			players.GET("/me/stats", playerHandler.GetMyStats)
		}

		// Battle routes
		battles := v1.Group("/battles")
		battles.Use(middleware.Auth(cfg))
		{
			battles.GET("/history", battleHandler.GetHistory)
			battles.GET("/:id/questions", battleHandler.GetQuestions)
		}

		// Leaderboard routes
		leaderboard := v1.Group("/leaderboard")
		leaderboard.Use(middleware.GeneralAPIRateLimit())
		{
			leaderboard.GET("", leaderboardHandler.GetLeaderboard)
		}

		// User routes
		users := v1.Group("/users")
		users.Use(middleware.Auth(cfg))
		{
			users.GET("/me", userHandler.GetCurrentUser)
		}
	}

	return router
}
