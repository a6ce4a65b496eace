package app

import (
	"context"
	"time"

	"quiz-agent-service/internal/domain"
)

// SessionStore abstracts how quiz sessions are stored (in-memory, Redis).
// Get and Update exchange copies; Update never recreates a deleted session.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
	// Lock serialises turns on one session. The returned func releases it.
	Lock(ctx context.Context, id string) (func(), error)
	Sweep(ctx context.Context, now time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// QuestionRetriever picks the next unseen question for a session.
type QuestionRetriever interface {
	Next(ctx context.Context, s *domain.Session, excludeExtra []string) (domain.Question, error)
}

// QuestionSource loads question content by id (usually through a cache).
type QuestionSource interface {
	Get(ctx context.Context, id string) (domain.Question, error)
}

// IntentClassifier turns free text into intents.
type IntentClassifier interface {
	Classify(ctx context.Context, raw, questionText string, phase domain.Phase) ([]domain.Intent, error)
}

// AnswerEvaluator grades an answer.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, answer string, q domain.Question) (domain.Evaluation, error)
}

// RatingRecorder accepts ratings without blocking the caller.
type RatingRecorder interface {
	RecordAsync(r domain.Rating)
}
