package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/pkg/database"
)

type RatingRepository struct {
	db *database.DB
}

func NewRatingRepository(db *database.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// GetOrCreate 레이팅 조회, 없으면 기본 레이팅으로 생성
func (r *RatingRepository) GetOrCreate(ctx context.Context, playerID string) (*models.RatingRecord, error) {
	query := `
		INSERT INTO player_ratings (player_id, rating, wins, losses)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (player_id) DO UPDATE SET player_id = EXCLUDED.player_id
		RETURNING player_id, rating, wins, losses
	`

	record := &models.RatingRecord{}
	err := r.db.QueryRowContext(ctx, query, playerID, models.DefaultRating).Scan(
		&record.PlayerID,
		&record.Rating,
		&record.Wins,
		&record.Losses,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create rating: %w", err)
	}

	return record, nil
}

// Find 레이팅 조회 (없으면 nil)
func (r *RatingRepository) Find(ctx context.Context, playerID string) (*models.RatingRecord, error) {
	query := `
		SELECT player_id, rating, wins, losses
		FROM player_ratings
		WHERE player_id = $1
	`

	record := &models.RatingRecord{}
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&record.PlayerID,
		&record.Rating,
		&record.Wins,
		&record.Losses,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rating: %w", err)
	}

	return record, nil
}

// UpdatePair 두 플레이어 레이팅의 원자적 read-modify-write
// 한 트랜잭션에서 두 행을 id 순서로 잠근 뒤 apply가 수정한 값을 기록한다.
// 같은 플레이어가 얽힌 배틀 두 개가 연달아 정산되어도 두 번째 정산은
// 첫 번째가 커밋한 레이팅을 읽는다.
func (r *RatingRepository) UpdatePair(ctx context.Context, player1ID, player2ID string, apply func(r1, r2 *models.RatingRecord)) (*models.RatingRecord, *models.RatingRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ensure := `
		INSERT INTO player_ratings (player_id, rating, wins, losses)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (player_id) DO NOTHING
	`
	for _, id := range []string{player1ID, player2ID} {
		if _, err := tx.ExecContext(ctx, ensure, id, models.DefaultRating); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure rating row: %w", err)
		}
	}

	// 데드락 방지를 위해 항상 id 오름차순으로 잠근다
	ordered := []string{player1ID, player2ID}
	sort.Strings(ordered)

	records := make(map[string]*models.RatingRecord, 2)
	lock := `
		SELECT player_id, rating, wins, losses
		FROM player_ratings
		WHERE player_id = $1
		FOR UPDATE
	`
	for _, id := range ordered {
		record := &models.RatingRecord{}
		if err := tx.QueryRowContext(ctx, lock, id).Scan(
			&record.PlayerID,
			&record.Rating,
			&record.Wins,
			&record.Losses,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to lock rating row: %w", err)
		}
		records[id] = record
	}

	rec1 := records[player1ID]
	rec2 := records[player2ID]
	apply(rec1, rec2)

	update := `
		UPDATE player_ratings
		SET rating = $2, wins = $3, losses = $4, updated_at = NOW()
		WHERE player_id = $1
	`
	for _, record := range []*models.RatingRecord{rec1, rec2} {
		if _, err := tx.ExecContext(ctx, update, record.PlayerID, record.Rating, record.Wins, record.Losses); err != nil {
			return nil, nil, fmt.Errorf("failed to update rating: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit rating update: %w", err)
	}

	return rec1, rec2, nil
}

// TopRatings 레이팅 내림차순 상위 limit명 (SQL 리더보드)
func (r *RatingRepository) TopRatings(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT pr.player_id, u.username, pr.rating, pr.wins, pr.losses
		FROM player_ratings pr
		JOIN users u ON u.id = pr.player_id
		ORDER BY pr.rating DESC, u.username ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	rank := 0
	for rows.Next() {
		rank++
		entry := models.LeaderboardEntry{Rank: rank}
		if err := rows.Scan(&entry.PlayerID, &entry.Username, &entry.Rating, &entry.Wins, &entry.Losses); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
