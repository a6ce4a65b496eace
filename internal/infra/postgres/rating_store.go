package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-agent-service/internal/domain"
)

// RatingStore records question ratings in question_ratings.
type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

func (s *RatingStore) Name() string { return "postgres" }

func (s *RatingStore) Record(ctx context.Context, r domain.Rating) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO question_ratings
		(id, question_id, session_id, user_id, rating, feedback, was_correct, user_answer, difficulty_at_time, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.QuestionID, r.SessionID, r.UserID, r.Value, r.Feedback, r.WasCorrect, r.UserAnswer,
		string(r.DifficultyAtTime), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (s *RatingStore) Average(ctx context.Context, questionID string) (domain.QuestionRatingSummary, error) {
	summary := domain.QuestionRatingSummary{QuestionID: questionID}
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8, count(*) FROM question_ratings WHERE question_id=$1`,
		questionID).Scan(&summary.Average, &summary.Count)
	if err != nil {
		return summary, fmt.Errorf("average rating: %w", err)
	}
	return summary, nil
}

// LowRated lists questions whose average rating is below threshold, worst first.
func (s *RatingStore) LowRated(ctx context.Context, threshold float64) ([]domain.QuestionRatingSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT question_id, AVG(rating)::float8 AS avg, count(*)
		FROM question_ratings GROUP BY question_id HAVING AVG(rating) < $1 ORDER BY avg, question_id`, threshold)
	if err != nil {
		return nil, fmt.Errorf("low rated questions: %w", err)
	}
	defer rows.Close()

	var out []domain.QuestionRatingSummary
	for rows.Next() {
		var s domain.QuestionRatingSummary
		if err := rows.Scan(&s.QuestionID, &s.Average, &s.Count); err != nil {
			return nil, fmt.Errorf("scan rating summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
