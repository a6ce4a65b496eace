// Package sqlite stores question ratings in a local SQLite file for
// single-node deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"quiz-agent-service/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS question_ratings (
	id                 TEXT PRIMARY KEY,
	question_id        TEXT    NOT NULL,
	session_id         TEXT    NOT NULL,
	user_id            TEXT    NOT NULL,
	rating             INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	feedback           TEXT    NOT NULL DEFAULT '',
	was_correct        INTEGER NOT NULL DEFAULT 0,
	user_answer        TEXT    NOT NULL DEFAULT '',
	difficulty_at_time TEXT    NOT NULL DEFAULT '',
	created_at         TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS question_ratings_question_idx ON question_ratings (question_id);`

type RatingStore struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*RatingStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init rating schema: %w", err)
	}
	return &RatingStore{db: db}, nil
}

func (s *RatingStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *RatingStore) Name() string { return "sqlite" }

func (s *RatingStore) Record(ctx context.Context, r domain.Rating) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO question_ratings
		(id, question_id, session_id, user_id, rating, feedback, was_correct, user_answer, difficulty_at_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.QuestionID, r.SessionID, r.UserID, r.Value, r.Feedback, r.WasCorrect, r.UserAnswer,
		string(r.DifficultyAtTime), r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (s *RatingStore) Average(ctx context.Context, questionID string) (domain.QuestionRatingSummary, error) {
	summary := domain.QuestionRatingSummary{QuestionID: questionID}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM question_ratings WHERE question_id = ?`,
		questionID).Scan(&summary.Average, &summary.Count)
	if err != nil {
		return summary, fmt.Errorf("average rating: %w", err)
	}
	return summary, nil
}

func (s *RatingStore) LowRated(ctx context.Context, threshold float64) ([]domain.QuestionRatingSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id, AVG(rating) AS avg, COUNT(*)
		FROM question_ratings GROUP BY question_id HAVING AVG(rating) < ? ORDER BY avg, question_id`, threshold)
	if err != nil {
		return nil, fmt.Errorf("low rated questions: %w", err)
	}
	defer rows.Close()

	var out []domain.QuestionRatingSummary
	for rows.Next() {
		var summary domain.QuestionRatingSummary
		if err := rows.Scan(&summary.QuestionID, &summary.Average, &summary.Count); err != nil {
			return nil, fmt.Errorf("scan rating summary: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}
