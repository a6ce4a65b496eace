package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-agent-service/internal/domain"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QuestionStore keeps questions in the questions table. Metadata filters,
// exclusions and similarity ranking over the float4[] embeddings all run in SQL.
type QuestionStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

func NewQuestionStore(pool *pgxpool.Pool, embedder Embedder) *QuestionStore {
	return &QuestionStore{pool: pool, embedder: embedder}
}

const questionColumns = `id, question, type, correct_answer, alternative_answers, topic, category,
	difficulty, embedding, review_status, explanation, tags, source, created_at`

func (s *QuestionStore) Get(ctx context.Context, id string) (domain.Question, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

// similarityExpr ranks a row by dot(embedding, query) / |embedding|, which
// orders rows the same as cosine similarity. Rows without an embedding score NULL.
const similarityExpr = `(SELECT sum(e.a * e.b) FROM unnest(embedding, $%d::float4[]) AS e(a, b))
	/ NULLIF(sqrt((SELECT sum(n.x * n.x) FROM unnest(embedding) AS n(x))), 0)`

// Search ranks the filtered rows by similarity to query inside Postgres and
// returns at most limit of them, so a turn never loads the whole bank.
func (s *QuestionStore) Search(ctx context.Context, query string, filter domain.QuestionFilter, limit int, exclude []string) ([]domain.Question, error) {
	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	where, args := filterClause(&filter)
	if len(exclude) > 0 {
		args = append(args, exclude)
		where = append(where, fmt.Sprintf("id <> ALL($%d)", len(args)))
	}
	args = append(args, qvec)
	sql := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY ` + fmt.Sprintf(similarityExpr, len(args)) + ` DESC NULLS LAST, created_at, id`
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search questions: %w", err)
	}
	return out, nil
}

func (s *QuestionStore) Count(ctx context.Context, filter *domain.QuestionFilter) (int, error) {
	where, args := filterClause(filter)
	sql := `SELECT count(*) FROM questions`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// Upsert inserts or replaces questions, embedding any without a vector.
func (s *QuestionStore) Upsert(ctx context.Context, questions []domain.Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		if len(q.Embedding) == 0 && s.embedder != nil {
			vec, err := s.embedder.Embed(ctx, q.Text)
			if err != nil {
				return fmt.Errorf("embed question %s: %w", q.ID, err)
			}
			q.Embedding = vec
		}
		answers, err := json.Marshal(q.CorrectAnswer)
		if err != nil {
			return fmt.Errorf("encode answers: %w", err)
		}
		alternatives, err := json.Marshal(q.AlternativeAnswers)
		if err != nil {
			return fmt.Errorf("encode alternatives: %w", err)
		}
		batch.Queue(`INSERT INTO questions (`+questionColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,COALESCE($14, now()))
			ON CONFLICT (id) DO UPDATE SET
				question=EXCLUDED.question, type=EXCLUDED.type, correct_answer=EXCLUDED.correct_answer,
				alternative_answers=EXCLUDED.alternative_answers, topic=EXCLUDED.topic, category=EXCLUDED.category,
				difficulty=EXCLUDED.difficulty, embedding=EXCLUDED.embedding, review_status=EXCLUDED.review_status,
				explanation=EXCLUDED.explanation, tags=EXCLUDED.tags, source=EXCLUDED.source`,
			q.ID, q.Text, q.Type, answers, alternatives, q.Topic, q.Category,
			string(q.Difficulty), q.Embedding, q.ReviewStatus, q.Explanation, tagsOrEmpty(q.Tags), q.Source,
			nullableTime(q))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range questions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert question: %w", err)
		}
	}
	return nil
}

func filterClause(filter *domain.QuestionFilter) ([]string, []any) {
	if filter == nil {
		return nil, nil
	}
	var where []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if filter.Difficulty != "" {
		add("difficulty=$%d", string(filter.Difficulty))
	}
	if filter.Type != "" {
		add("type=$%d", filter.Type)
	}
	if filter.ReviewStatus != "" {
		add("review_status=$%d", filter.ReviewStatus)
	}
	if len(filter.Categories) > 0 {
		add("category = ANY($%d)", filter.Categories)
	}
	return where, args
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q            domain.Question
		difficulty   string
		answers      []byte
		alternatives []byte
	)
	err := row.Scan(&q.ID, &q.Text, &q.Type, &answers, &alternatives, &q.Topic, &q.Category,
		&difficulty, &q.Embedding, &q.ReviewStatus, &q.Explanation, &q.Tags, &q.Source, &q.CreatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	q.Difficulty = domain.Difficulty(difficulty)
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &q.CorrectAnswer); err != nil {
			return domain.Question{}, fmt.Errorf("decode answers of %s: %w", q.ID, err)
		}
	}
	if len(alternatives) > 0 {
		if err := json.Unmarshal(alternatives, &q.AlternativeAnswers); err != nil {
			return domain.Question{}, fmt.Errorf("decode alternatives of %s: %w", q.ID, err)
		}
	}
	return q, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullableTime(q domain.Question) any {
	if q.CreatedAt.IsZero() {
		return nil
	}
	return q.CreatedAt
}
