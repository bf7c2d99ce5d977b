package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/pkg/database"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 새 사용자 생성
func (r *UserRepository) Create(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, level, xp)
		VALUES ($1, $2, $3, 1, 0)
		RETURNING id, username, email, level, xp, created_at, updated_at
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username, email, passwordHash).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Level,
		&user.XP,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindByEmail 이메일로 사용자 찾기
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, level, xp, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email), true)
}

// FindByUsername 사용자명으로 사용자 찾기
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, level, xp, created_at, updated_at
		FROM users
		WHERE username = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username), true)
}

// FindByID ID로 사용자 찾기
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, email, level, xp, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), false)
}

func (r *UserRepository) scanOne(row *sql.Row, withHash bool) (*models.User, error) {
	user := &models.User{}

	var err error
	if withHash {
		err = row.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Level,
			&user.XP,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
	} else {
		err = row.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.Level,
			&user.XP,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
	}

	if err == sql.ErrNoRows {
		return nil, nil // 사용자 없음
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}
