package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/metrics"
)

// Request describes one generation batch.
type Request struct {
	Count          int
	Difficulty     domain.Difficulty
	Topics         []string
	Categories     []string
	ExcludedTopics []string
	// Multiplier overrides the pipeline default when positive. 1 disables critique.
	Multiplier int
	// Floor overrides the pipeline default when non-nil.
	Floor *float64
}

// Generator drafts raw questions.
type Generator interface {
	Generate(ctx context.Context, req Request, n int) ([]domain.Question, error)
}

// Critic scores a draft in [0,10].
type Critic interface {
	Critique(ctx context.Context, q domain.Question) (domain.Critique, error)
}

// Sink stores selected questions.
type Sink interface {
	Upsert(ctx context.Context, questions []domain.Question) error
}

// Config holds pipeline defaults.
type Config struct {
	Multiplier  int
	Floor       float64
	Concurrency int
}

// Result reports what a batch produced.
type Result struct {
	Generated  int         `json:"generated"`
	Selected   []Candidate `json:"selected"`
	BelowFloor int         `json:"belowFloorCount"`
	Floor      float64     `json:"floor"`
}

// Pipeline generates Count*Multiplier drafts, critiques them concurrently and
// stores the best Count as pending review.
type Pipeline struct {
	generator Generator
	critic    Critic
	sink      Sink
	cfg       Config
	logger    *zap.Logger
}

func NewPipeline(generator Generator, critic Critic, sink Sink, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{generator: generator, critic: critic, sink: sink, cfg: cfg, logger: logger}
}

// Run executes one batch.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if req.Count <= 0 {
		return Result{}, fmt.Errorf("%w: count must be positive", domain.ErrInvalidArgument)
	}
	multiplier := p.cfg.Multiplier
	if req.Multiplier > 0 {
		multiplier = req.Multiplier
	}
	floor := p.cfg.Floor
	if req.Floor != nil {
		floor = *req.Floor
	}

	start := time.Now()
	drafts, err := p.generator.Generate(ctx, req, req.Count*multiplier)
	if err != nil {
		return Result{}, domain.WrapCollaborator("generator", "generate", err)
	}
	for i := range drafts {
		drafts[i].ReviewStatus = domain.ReviewPendingReview
	}

	candidates := make([]Candidate, len(drafts))
	for i, q := range drafts {
		candidates[i] = Candidate{Question: q}
	}
	if multiplier > 1 {
		if err := p.critiqueAll(ctx, candidates); err != nil {
			return Result{}, err
		}
	}

	selected, below := SelectTop(candidates, req.Count, floor)
	if multiplier > 1 && below > 0 {
		metrics.GenerationBelowFloor.Add(float64(below))
	}

	questions := make([]domain.Question, len(selected))
	for i, c := range selected {
		questions[i] = c.Question
	}
	if p.sink != nil && len(questions) > 0 {
		if err := p.sink.Upsert(ctx, questions); err != nil {
			return Result{}, fmt.Errorf("store generated questions: %w", err)
		}
	}

	p.logger.Info("generation batch complete",
		zap.Int("requested", req.Count),
		zap.Int("generated", len(drafts)),
		zap.Int("selected", len(selected)),
		zap.Int("below_floor", below),
		zap.Duration("elapsed", time.Since(start)))
	return Result{Generated: len(drafts), Selected: selected, BelowFloor: below, Floor: floor}, nil
}

func (p *Pipeline) critiqueAll(ctx context.Context, candidates []Candidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i := range candidates {
		g.Go(func() error {
			critique, err := p.critic.Critique(gctx, candidates[i].Question)
			if err != nil {
				return domain.WrapCollaborator("critic", "critique", err)
			}
			candidates[i].Critique = critique
			candidates[i].Score = critique.Score
			return nil
		})
	}
	return g.Wait()
}
