package cli

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"quiz-agent-service/internal/app"
	"quiz-agent-service/internal/config"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"start", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %q subcommand, got %v (err %v)", name, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("port") == nil {
		t.Fatalf("expected --config and --port flags")
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	if err := runMigrationsWithConfig(context.Background(), config.Default(), zap.NewNop()); err == nil {
		t.Fatalf("expected error without a postgres url")
	}
}

func TestBuildComponentsWithLocalBackends(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.LLM.Provider = "mock"
	cfg.Questions.SeedFile = filepath.Join("..", "..", "config", "questions.json")
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "ratings.db")

	comps, err := buildComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer comps.close(zap.NewNop())

	if comps.admin == nil || comps.feedback == nil {
		t.Fatalf("expected admin and feedback services, got %+v", comps)
	}
	session, err := comps.service.Create(ctx, app.CreateRequest{MaxQuestions: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := comps.service.Get(ctx, session.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if n, err := comps.service.ActiveCount(ctx); err != nil || n != 1 {
		t.Fatalf("expected one active session, got %d (err %v)", n, err)
	}
}

func TestBuildComponentsToleratesMissingSeedFile(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "mock"
	cfg.Questions.SeedFile = filepath.Join(t.TempDir(), "missing.json")

	comps, err := buildComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	comps.close(zap.NewNop())
}
