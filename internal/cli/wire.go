package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-agent-service/internal/agent"
	"quiz-agent-service/internal/app"
	"quiz-agent-service/internal/config"
	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/evaluation"
	"quiz-agent-service/internal/feedback"
	"quiz-agent-service/internal/generation"
	"quiz-agent-service/internal/infra/memory"
	"quiz-agent-service/internal/infra/postgres"
	"quiz-agent-service/internal/infra/rabbit"
	redisstore "quiz-agent-service/internal/infra/redis"
	"quiz-agent-service/internal/infra/sqlite"
	"quiz-agent-service/internal/llm"
	"quiz-agent-service/internal/retrieval"
)

// questionStore is what both the memory and Postgres question stores provide.
type questionStore interface {
	retrieval.QuestionStore
	Upsert(ctx context.Context, questions []domain.Question) error
}

type questionCache interface {
	app.QuestionSource
	app.QuestionInvalidator
}

type ratingBackend interface {
	feedback.Sink
	feedback.Store
}

// components is the fully wired service graph plus what must be released on shutdown.
type components struct {
	service  *app.QuizService
	admin    *app.AdminService
	feedback *feedback.Service
	closers  []func() error
}

func (c *components) close(logger *zap.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

func buildComponents(ctx context.Context, cfg config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}
	fail := func(err error) (*components, error) {
		c.close(logger)
		return nil, err
	}

	embedder, err := llm.NewEmbedder(cfg.Embeddings)
	if err != nil {
		return fail(err)
	}
	provider, err := llm.NewProvider(cfg.LLM, logger)
	if err != nil {
		return fail(err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return fail(fmt.Errorf("connect to redis: %w", err))
		}
		c.closers = append(c.closers, redisClient.Close)
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect to postgres: %w", err))
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
	}

	var sessions app.SessionStore
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, cfg.Session.SweepBatch)
	} else {
		sessions = memory.NewSessionStore(cfg.Session.SweepBatch)
	}

	questions, err := buildQuestionStore(ctx, cfg, pool, embedder, logger)
	if err != nil {
		return fail(err)
	}
	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	var cache questionCache
	if redisClient != nil {
		cache = redisstore.NewQuestionCache(redisClient, questions, cacheTTL)
	} else {
		cache = memory.NewQuestionCache(questions, cacheTTL)
	}

	ratings, sinks, err := buildRatingSinks(ctx, cfg, pool, logger, c)
	if err != nil {
		return fail(err)
	}
	c.feedback = feedback.NewService(ratings, logger, sinks...)

	retriever := retrieval.New(questions, embedder, retrieval.Config{
		Candidates:   cfg.Retrieval.Candidates,
		RecentWindow: cfg.Retrieval.RecentWindow,
		TopK:         cfg.Retrieval.TopK,
		Timeout:      config.TTLDuration(cfg.Retrieval.Timeout, 10*time.Second),
	}, retrieval.WithLogger(logger))

	c.service = app.NewQuizService(app.Deps{
		Sessions:   sessions,
		Retriever:  retriever,
		Questions:  cache,
		Classifier: agent.NewClassifier(provider, logger),
		Evaluator:  evaluation.New(agent.NewJudge(provider), config.TTLDuration(cfg.Evaluation.JudgeTimeout, 15*time.Second), logger),
		Ratings:    c.feedback,
		Logger:     logger,
		DefaultTTL: config.TTLDuration(cfg.Session.TTL, app.DefaultTTL),
	})

	pipeline := generation.NewPipeline(
		agent.NewGenerator(provider),
		agent.NewCritic(provider, logger),
		questions,
		generation.Config{
			Multiplier:  cfg.Generation.Multiplier,
			Floor:       cfg.Generation.Floor,
			Concurrency: cfg.Generation.Concurrency,
		},
		logger,
	)
	c.admin = app.NewAdminService(questions, cache, pipeline, c.feedback, logger)
	return c, nil
}

// buildQuestionStore returns the Postgres store when configured, otherwise an
// in-memory store loaded from the seed file.
func buildQuestionStore(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, embedder llm.Embedder, logger *zap.Logger) (questionStore, error) {
	if pool != nil {
		return postgres.NewQuestionStore(pool, embedder), nil
	}
	store := memory.NewQuestionStore(embedder)
	if cfg.Questions.SeedFile == "" {
		return store, nil
	}
	n, err := store.LoadSeedFile(ctx, cfg.Questions.SeedFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("seed file not found, starting with an empty question bank", zap.String("path", cfg.Questions.SeedFile))
	case err != nil:
		return nil, err
	default:
		logger.Info("questions loaded", zap.String("path", cfg.Questions.SeedFile), zap.Int("count", n))
	}
	return store, nil
}

// buildRatingSinks picks the queryable rating store (Postgres, then SQLite)
// and adds the RabbitMQ publisher as an extra sink when configured.
func buildRatingSinks(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger, c *components) (feedback.Store, []feedback.Sink, error) {
	var store ratingBackend
	switch {
	case pool != nil:
		store = postgres.NewRatingStore(pool)
	case cfg.SQLite.Path != "":
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		c.closers = append(c.closers, s.Close)
		store = s
	}

	var sinks []feedback.Sink
	if store != nil {
		sinks = append(sinks, store)
	}
	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, nil, err
		}
		c.closers = append(c.closers, pub.Close)
		sinks = append(sinks, pub)
	}
	if len(sinks) == 0 {
		logger.Warn("no rating sink configured, ratings will be dropped")
	}
	if store == nil {
		return nil, sinks, nil
	}
	return store, sinks, nil
}
