// Package feedback records question ratings and answers rating queries.
package feedback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/metrics"
)

// DefaultLowRatedThreshold is the average below which a question counts as low rated.
const DefaultLowRatedThreshold = 2.5

// ErrNoRatingStore is returned by queries when no rating store is configured.
var ErrNoRatingStore = errors.New("no rating store configured")

// Sink receives every recorded rating.
type Sink interface {
	Name() string
	Record(ctx context.Context, r domain.Rating) error
}

// Store answers aggregate queries over recorded ratings.
type Store interface {
	Average(ctx context.Context, questionID string) (domain.QuestionRatingSummary, error)
	LowRated(ctx context.Context, threshold float64) ([]domain.QuestionRatingSummary, error)
}

type Service struct {
	sinks   []Sink
	store   Store
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewService fans ratings out to sinks. Store may be nil when no queries are needed.
func NewService(store Store, logger *zap.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sinks:   sinks,
		store:   store,
		logger:  logger.Named("feedback"),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Validate checks the rating value.
func Validate(value int) error {
	if value < 1 || value > 5 {
		return domain.ErrInvalidRating
	}
	return nil
}

// Record validates r and delivers it to every sink. Sink failures are
// logged and counted but never returned.
func (s *Service) Record(ctx context.Context, r domain.Rating) error {
	if err := Validate(r.Value); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}

	var wg sync.WaitGroup
	for _, sink := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Record(ctx, r); err != nil {
				metrics.RatingSinkFailures.WithLabelValues(sink.Name()).Inc()
				s.logger.Warn("rating sink failed",
					zap.String("sink", sink.Name()),
					zap.String("question_id", r.QuestionID),
					zap.Error(err))
			}
		}()
	}
	wg.Wait()
	return nil
}

// RecordAsync records r in the background, detached from the caller's
// context. Invalid ratings are logged and dropped.
func (s *Service) RecordAsync(r domain.Rating) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Record(ctx, r); err != nil {
			s.logger.Info("dropping rating", zap.Int("rating", r.Value), zap.Error(err))
		}
	}()
}

// Wait blocks until background deliveries finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Average(ctx context.Context, questionID string) (domain.QuestionRatingSummary, error) {
	if s.store == nil {
		return domain.QuestionRatingSummary{}, ErrNoRatingStore
	}
	return s.store.Average(ctx, questionID)
}

// LowRated lists questions averaging below threshold; a non-positive
// threshold means DefaultLowRatedThreshold.
func (s *Service) LowRated(ctx context.Context, threshold float64) ([]domain.QuestionRatingSummary, error) {
	if s.store == nil {
		return nil, ErrNoRatingStore
	}
	if threshold <= 0 {
		threshold = DefaultLowRatedThreshold
	}
	return s.store.LowRated(ctx, threshold)
}
