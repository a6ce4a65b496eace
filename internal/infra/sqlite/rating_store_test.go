package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quiz-agent-service/internal/domain"
)

func TestRatingStoreAggregates(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "ratings.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ratings := []domain.Rating{
		{ID: "r1", QuestionID: "q1", SessionID: "s", UserID: "u1", Value: 1},
		{ID: "r2", QuestionID: "q1", SessionID: "s", UserID: "u2", Value: 2},
		{ID: "r3", QuestionID: "q2", SessionID: "s", UserID: "u1", Value: 5, WasCorrect: true},
	}
	for _, r := range ratings {
		r.CreatedAt = time.Now()
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("record %s: %v", r.ID, err)
		}
	}

	summary, err := store.Average(ctx, "q1")
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if summary.Average != 1.5 || summary.Count != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	low, err := store.LowRated(ctx, 2.5)
	if err != nil {
		t.Fatalf("low rated: %v", err)
	}
	if len(low) != 1 || low[0].QuestionID != "q1" {
		t.Fatalf("expected only q1 below threshold, got %+v", low)
	}

	none, _ := store.Average(ctx, "unknown")
	if none.Count != 0 || none.Average != 0 {
		t.Fatalf("expected empty summary, got %+v", none)
	}
}
