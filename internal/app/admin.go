package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/generation"
)

const maxGenerateCount = 20

// ErrGenerationDisabled is returned when no generation pipeline is configured.
var ErrGenerationDisabled = errors.New("question generation is not configured")

// QuestionWriter is the writable side of the question store.
type QuestionWriter interface {
	Get(ctx context.Context, id string) (domain.Question, error)
	Upsert(ctx context.Context, questions []domain.Question) error
}

// QuestionInvalidator drops a cached question.
type QuestionInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// GenerationRunner runs a Best-of-N batch.
type GenerationRunner interface {
	Run(ctx context.Context, req generation.Request) (generation.Result, error)
}

// RatingQueries reads aggregated ratings.
type RatingQueries interface {
	Average(ctx context.Context, questionID string) (domain.QuestionRatingSummary, error)
	LowRated(ctx context.Context, threshold float64) ([]domain.QuestionRatingSummary, error)
}

// AdminService edits and generates question content.
type AdminService struct {
	questions QuestionWriter
	cache     QuestionInvalidator
	generator GenerationRunner
	ratings   RatingQueries
	logger    *zap.Logger
}

// NewAdminService builds an AdminService. cache and generator may be nil.
func NewAdminService(questions QuestionWriter, cache QuestionInvalidator, generator GenerationRunner, ratings RatingQueries, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{questions: questions, cache: cache, generator: generator, ratings: ratings, logger: logger}
}

// PatchQuestion applies an allow-listed edit. A text change clears the stored
// embedding so the store recomputes it on write.
func (a *AdminService) PatchQuestion(ctx context.Context, id string, patch domain.QuestionPatch) (domain.Question, error) {
	if patch.Empty() {
		return domain.Question{}, fmt.Errorf("%w: patch changes nothing", domain.ErrInvalidArgument)
	}
	if err := patch.Validate(); err != nil {
		return domain.Question{}, err
	}
	q, err := a.questions.Get(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	updated, textChanged := patch.Apply(q)
	if err := a.questions.Upsert(ctx, []domain.Question{updated}); err != nil {
		return domain.Question{}, domain.WrapCollaborator("question_store", "upsert", err)
	}
	if a.cache != nil {
		if err := a.cache.Invalidate(ctx, id); err != nil {
			a.logger.Warn("question cache invalidation failed", zap.String("question_id", id), zap.Error(err))
		}
	}
	a.logger.Info("question patched", zap.String("question_id", id), zap.Bool("text_changed", textChanged))
	return updated, nil
}

// Generate runs one Best-of-N batch.
func (a *AdminService) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	if a.generator == nil {
		return generation.Result{}, ErrGenerationDisabled
	}
	if req.Count < 1 || req.Count > maxGenerateCount {
		return generation.Result{}, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidArgument, maxGenerateCount)
	}
	if req.Difficulty != "" {
		if _, err := domain.ParseDifficulty(string(req.Difficulty)); err != nil {
			return generation.Result{}, err
		}
	}
	if req.Floor != nil && (*req.Floor < 0 || *req.Floor > 10) {
		return generation.Result{}, fmt.Errorf("%w: floor must be within 0..10", domain.ErrInvalidArgument)
	}
	return a.generator.Run(ctx, req)
}

// QuestionRating returns the average rating of one question.
func (a *AdminService) QuestionRating(ctx context.Context, questionID string) (domain.QuestionRatingSummary, error) {
	return a.ratings.Average(ctx, questionID)
}

// LowRated lists questions averaging below threshold.
func (a *AdminService) LowRated(ctx context.Context, threshold float64) ([]domain.QuestionRatingSummary, error) {
	return a.ratings.LowRated(ctx, threshold)
}
