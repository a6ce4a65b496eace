package redis

import (
	"context"
	"testing"
	"time"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/infra/memory"
)

type countingLoader struct {
	*memory.QuestionStore
	calls int
}

func (l *countingLoader) Get(ctx context.Context, id string) (domain.Question, error) {
	l.calls++
	return l.QuestionStore.Get(ctx, id)
}

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	store := memory.NewQuestionStore(nil)
	_ = store.Upsert(ctx, []domain.Question{{
		ID: "q1", Text: "What is 2 + 2?", CorrectAnswer: domain.Answers{"4"}, Embedding: []float32{0.1, 0.2},
	}})
	loader := &countingLoader{QuestionStore: store}
	cache := NewQuestionCache(client, loader, time.Minute)

	q, err := cache.Get(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(q.Embedding) != 2 {
		t.Fatalf("expected loader result to keep its embedding")
	}
	if !mr.Exists("quiz:question:q1") {
		t.Fatalf("expected question cached in redis")
	}

	q, _ = cache.Get(ctx, "q1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if q.CorrectAnswer.Canonical() != "4" || q.Embedding != nil {
		t.Fatalf("unexpected cached question %+v", q)
	}

	if err := cache.Invalidate(ctx, "q1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.Get(ctx, "q1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}
