package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/textutil"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QuestionStore is a brute-force semantic store for local runs and tests.
type QuestionStore struct {
	embedder Embedder

	mu        sync.RWMutex
	questions map[string]domain.Question
	order     []string
}

func NewQuestionStore(embedder Embedder) *QuestionStore {
	return &QuestionStore{embedder: embedder, questions: make(map[string]domain.Question)}
}

// Upsert stores questions, embedding any that arrive without a vector.
func (s *QuestionStore) Upsert(ctx context.Context, questions []domain.Question) error {
	for i := range questions {
		if len(questions[i].Embedding) > 0 || s.embedder == nil {
			continue
		}
		vec, err := s.embedder.Embed(ctx, questions[i].Text)
		if err != nil {
			return fmt.Errorf("embed question %s: %w", questions[i].ID, err)
		}
		questions[i].Embedding = vec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		if _, ok := s.questions[q.ID]; !ok {
			s.order = append(s.order, q.ID)
		}
		s.questions[q.ID] = q
	}
	return nil
}

func (s *QuestionStore) Get(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

// Search ranks matching questions by cosine similarity to the query.
// Ties keep insertion order.
func (s *QuestionStore) Search(ctx context.Context, query string, filter domain.QuestionFilter, limit int, exclude []string) ([]domain.Question, error) {
	var qvec []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		qvec = vec
	}

	s.mu.RLock()
	type hit struct {
		q     domain.Question
		score float64
	}
	var hits []hit
	for _, id := range s.order {
		q := s.questions[id]
		if !filter.Matches(q) || slices.Contains(exclude, id) {
			continue
		}
		hits = append(hits, hit{q: q, score: textutil.Cosine(qvec, q.Embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.Question, len(hits))
	for i, h := range hits {
		out[i] = h.q
	}
	return out, nil
}

// Count counts questions matching filter; nil counts everything.
func (s *QuestionStore) Count(_ context.Context, filter *domain.QuestionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if filter == nil {
		return len(s.questions), nil
	}
	n := 0
	for _, q := range s.questions {
		if filter.Matches(q) {
			n++
		}
	}
	return n, nil
}

// LoadSeedFile upserts the questions in a JSON array file.
func (s *QuestionStore) LoadSeedFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return 0, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for i := range questions {
		if questions[i].Type == "" {
			questions[i].Type = domain.QuestionTypeText
		}
		if questions[i].ReviewStatus == "" {
			questions[i].ReviewStatus = domain.ReviewApproved
		}
	}
	if err := s.Upsert(ctx, questions); err != nil {
		return 0, err
	}
	return len(questions), nil
}
