package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-agent-service/internal/app"
	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/evaluation"
	"quiz-agent-service/internal/feedback"
	"quiz-agent-service/internal/infra/postgres"
	pgmigrations "quiz-agent-service/internal/infra/postgres/migrations"
	infraredis "quiz-agent-service/internal/infra/redis"
	"quiz-agent-service/internal/llm"
	"quiz-agent-service/internal/retrieval"
)

// answerAndRate treats input as an answer and attaches a 4-star rating.
type answerAndRate struct{}

func (answerAndRate) Classify(_ context.Context, raw, _ string, phase domain.Phase) ([]domain.Intent, error) {
	if phase == domain.PhaseIdle {
		return []domain.Intent{{Kind: domain.IntentStart}}, nil
	}
	return []domain.Intent{
		{Kind: domain.IntentAnswer, Text: raw},
		{Kind: domain.IntentRating, Rating: 4, Feedback: "good one"},
	}, nil
}

type refusingJudge struct{}

func (refusingJudge) JudgeAnswer(context.Context, domain.Question, string) (string, error) {
	return "incorrect", nil
}

func TestQuizTurnEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL := startPostgres(t, ctx)
	redisURL := startRedis(t, ctx)

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	embedder := llm.NewHashEmbedder(64)
	questions := postgres.NewQuestionStore(pool, embedder)
	if err := questions.Upsert(ctx, sampleQuestions()); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	ratings := postgres.NewRatingStore(pool)
	fb := feedback.NewService(ratings, nil, ratings)
	service := app.NewQuizService(app.Deps{
		Sessions:   infraredis.NewSessionStore(redisClient, 50),
		Retriever:  retrieval.New(questions, embedder, retrieval.DefaultConfig()),
		Questions:  infraredis.NewQuestionCache(redisClient, questions, 5*time.Minute),
		Classifier: answerAndRate{},
		Evaluator:  evaluation.New(refusingJudge{}, 5*time.Second, nil),
		Ratings:    fb,
	})

	session, err := service.Create(ctx, app.CreateRequest{MaxQuestions: 1, UserID: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	started, err := service.Start(ctx, session.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Question == nil {
		t.Fatalf("expected a question from postgres, got %+v", started)
	}
	q, err := questions.Get(ctx, started.Question.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}

	res, err := service.SubmitInput(ctx, session.ID, q.CorrectAnswer.Canonical(), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Finished() || res.Score != "1.0/1" {
		t.Fatalf("expected finished quiz scoring 1.0/1, got %+v", res)
	}

	stored, err := service.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("reload session from redis: %v", err)
	}
	if stored.Participants[0].CorrectCount != 1 || stored.Phase != domain.PhaseFinished {
		t.Fatalf("unexpected stored session %+v", stored)
	}

	fb.Wait()
	summary, err := fb.Average(ctx, q.ID)
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if summary.Count != 1 || summary.Average != 4 {
		t.Fatalf("expected one 4-star rating, got %+v", summary)
	}
}

func TestPostgresSearchRanksAndLimitsInDatabase(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL := startPostgres(t, ctx)
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	questions := postgres.NewQuestionStore(pool, llm.NewHashEmbedder(64))
	if err := questions.Upsert(ctx, sampleQuestions()); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
	approved := domain.QuestionFilter{ReviewStatus: domain.ReviewApproved}

	got, err := questions.Search(ctx, "capital of Japan", approved, 1, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "q1" {
		t.Fatalf("expected only q1 as the closest match, got %+v", got)
	}

	got, err = questions.Search(ctx, "gas plants absorb", approved, 5, []string{"q2"})
	if err != nil {
		t.Fatalf("search with exclusion: %v", err)
	}
	if len(got) != 1 || got[0].ID != "q1" {
		t.Fatalf("expected exclusion to leave q1, got %+v", got)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "What is the capital of Japan?", CorrectAnswer: domain.Answers{"Tokyo"}, Topic: "geography", Category: "geography", Difficulty: domain.DifficultyMedium, Type: domain.QuestionTypeText, ReviewStatus: domain.ReviewApproved},
		{ID: "q2", Text: "What gas do plants absorb from the air?", CorrectAnswer: domain.Answers{"carbon dioxide", "CO2"}, Topic: "biology", Category: "science", Difficulty: domain.DifficultyMedium, Type: domain.QuestionTypeText, ReviewStatus: domain.ReviewApproved},
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

// startContainer runs req and returns host:port of its first exposed port,
// skipping the test when Docker is missing.
func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest) string {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("%s endpoint: %v", req.Image, err)
	}
	return endpoint
}

func startPostgres(t *testing.T, ctx context.Context) string {
	endpoint := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(time.Minute),
	})
	return fmt.Sprintf("postgres://quiz:quizpass@%s/quizdb?sslmode=disable", endpoint)
}

func startRedis(t *testing.T, ctx context.Context) string {
	endpoint := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	})
	return "redis://" + endpoint
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
