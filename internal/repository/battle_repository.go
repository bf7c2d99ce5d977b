package repository

import (
	"context"
	"fmt"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/pkg/database"
)

type BattleRepository struct {
	db *database.DB
}

func NewBattleRepository(db *database.DB) *BattleRepository {
	return &BattleRepository{db: db}
}

// SaveResult 종료된 배틀 기록 저장 + 양쪽 플레이어 XP 지급 (한 트랜잭션)
func (r *BattleRepository) SaveResult(ctx context.Context, result *models.BattleResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO battles (
			battle_id, player1_id, player2_id, winner_id,
			player1_score, player2_score, player1_time_ms, player2_time_ms,
			forfeit, started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.ExecContext(ctx, insert,
		result.BattleID,
		result.Player1.PlayerID,
		result.Player2.PlayerID,
		result.WinnerID,
		result.Player1.Score,
		result.Player2.Score,
		result.Player1.TimeSpentMs,
		result.Player2.TimeSpentMs,
		result.Forfeit,
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert battle record: %w", err)
	}

	grantXP := `
		UPDATE users
		SET xp = xp + $2, updated_at = NOW()
		WHERE id = $1
	`
	for _, pr := range []models.PlayerResult{result.Player1, result.Player2} {
		if _, err := tx.ExecContext(ctx, grantXP, pr.PlayerID, pr.XPAwarded); err != nil {
			return fmt.Errorf("failed to grant xp: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit battle result: %w", err)
	}

	return nil
}

// CountByPlayer 플레이어가 참여한 배틀 수
func (r *BattleRepository) CountByPlayer(ctx context.Context, playerID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM battles
		WHERE player1_id = $1 OR player2_id = $1
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, playerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count battles: %w", err)
	}

	return count, nil
}

// ListByPlayer 플레이어의 배틀 히스토리 (최신순)
func (r *BattleRepository) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]models.BattleHistoryRecord, error) {
	query := `
		SELECT battle_id, player1_id, player2_id, winner_id,
		       player1_score, player2_score, player1_time_ms, player2_time_ms,
		       forfeit, started_at, finished_at
		FROM battles
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY finished_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query battle history: %w", err)
	}
	defer rows.Close()

	var records []models.BattleHistoryRecord
	for rows.Next() {
		var rec models.BattleHistoryRecord
		if err := rows.Scan(
			&rec.BattleID,
			&rec.Player1ID,
			&rec.Player2ID,
			&rec.WinnerID,
			&rec.Player1Score,
			&rec.Player2Score,
			&rec.Player1TimeMs,
			&rec.Player2TimeMs,
			&rec.Forfeit,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan battle record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
