package repository

import (
	"context"
	"fmt"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/pkg/database"
	"github.com/lib/pq"
)

type QuestionRepository struct {
	db *database.DB
}

func NewQuestionRepository(db *database.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// SampleQuestions 배틀용 문제 무작위 샘플링
// topic이 "any"면 전체에서, 아니면 해당 토픽에서 뽑는다.
func (r *QuestionRepository) SampleQuestions(ctx context.Context, topic string, count int) ([]models.Question, error) {
	query := `
		SELECT id, title, description, options, correct_answer, topic
		FROM problems
		WHERE $1 = 'any' OR topic = $1
		ORDER BY random()
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, topic, count)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(
			&q.ID,
			&q.Title,
			&q.Description,
			pq.Array(&q.Options),
			&q.CorrectAnswer,
			&q.Topic,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions available for topic %q", topic)
	}

	return questions, nil
}
