package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey    = "leaderboard:rating"
	leaderboardInfoKey = "leaderboard:players"
)

// playerInfo 리더보드 조회용 캐시 항목 (sorted set 점수 외의 필드)
type playerInfo struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// LeaderboardService Redis sorted set 기반 리더보드
// Rating Store의 읽기 전용 미러이며, 정산이 끝난 레이팅만 반영된다.
type LeaderboardService struct {
	client *redis.Client
}

// NewLeaderboardService 리더보드 서비스 생성
func NewLeaderboardService(client *redis.Client) *LeaderboardService {
	return &LeaderboardService{client: client}
}

// SetRating 플레이어 레이팅 반영
func (s *LeaderboardService) SetRating(ctx context.Context, record models.RatingRecord, username string) error {
	info, err := json.Marshal(playerInfo{
		Username: username,
		Wins:     record.Wins,
		Losses:   record.Losses,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal player info: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(record.Rating),
		Member: record.PlayerID,
	})
	pipe.HSet(ctx, leaderboardInfoKey, record.PlayerID, info)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update leaderboard: %w", err)
	}
	return nil
}

// Seed 기동 시 Rating Store 전체를 리더보드에 적재
func (s *LeaderboardService) Seed(ctx context.Context, entries []models.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, e := range entries {
		info, err := json.Marshal(playerInfo{Username: e.Username, Wins: e.Wins, Losses: e.Losses})
		if err != nil {
			return fmt.Errorf("failed to marshal player info: %w", err)
		}
		pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(e.Rating), Member: e.PlayerID})
		pipe.HSet(ctx, leaderboardInfoKey, e.PlayerID, info)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed leaderboard: %w", err)
	}
	return nil
}

// Top 레이팅 내림차순 상위 limit명 조회
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	scores, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(scores) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	ids := make([]string, len(scores))
	for i, z := range scores {
		ids[i] = z.Member.(string)
	}

	infos, err := s.client.HMGet(ctx, leaderboardInfoKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read player info: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(scores))
	for i, z := range scores {
		entry := models.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: ids[i],
			Rating:   int(z.Score),
		}
		if raw, ok := infos[i].(string); ok {
			var info playerInfo
			if err := json.Unmarshal([]byte(raw), &info); err == nil {
				entry.Username = info.Username
				entry.Wins = info.Wins
				entry.Losses = info.Losses
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
