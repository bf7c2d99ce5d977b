package service

import (
	"context"
	"fmt"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/internal/repository"
)

type UserService struct {
	userRepo   *repository.UserRepository
	ratingRepo *repository.RatingRepository
	battleRepo *repository.BattleRepository
}

func NewUserService(
	userRepo *repository.UserRepository,
	ratingRepo *repository.RatingRepository,
	battleRepo *repository.BattleRepository,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		ratingRepo: ratingRepo,
		battleRepo: battleRepo,
	}
}

// Register 새 사용자 등록
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	// 이메일/사용자명 중복 확인
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	existing, err = s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.Create(ctx, username, email, passwordHash)
}

// Login 이메일/비밀번호 인증
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetProfile 사용자 프로필 조회
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// PresenceFor 접속 등록용 PlayerPresence 구성 (프로필 + 레이팅)
func (s *UserService) PresenceFor(ctx context.Context, userID string) (*models.PlayerPresence, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	rating, err := s.ratingRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating: %w", err)
	}

	return &models.PlayerPresence{
		PlayerID: user.ID,
		Username: user.Username,
		Level:    user.Level,
		Rating:   rating.Rating,
	}, nil
}

// GetBattleStats 배틀 통계 조회 (wins/losses/rating/totalBattles)
func (s *UserService) GetBattleStats(ctx context.Context, userID string) (*models.BattleStats, error) {
	rating, err := s.ratingRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating: %w", err)
	}

	total, err := s.battleRepo.CountByPlayer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count battles: %w", err)
	}

	return &models.BattleStats{
		PlayerID:     userID,
		Rating:       rating.Rating,
		Wins:         rating.Wins,
		Losses:       rating.Losses,
		TotalBattles: total,
	}, nil
}

// BattleHistory 플레이어 배틀 히스토리 (최신순)
func (s *UserService) BattleHistory(ctx context.Context, userID string, page, pageSize int) ([]models.BattleHistoryRecord, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	records, err := s.battleRepo.ListByPlayer(ctx, userID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list battle history: %w", err)
	}

	return records, nil
}
