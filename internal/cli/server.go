package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-agent-service/internal/config"
	"quiz-agent-service/internal/logging"
	transport "quiz-agent-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build service", zap.Error(err))
		return err
	}
	defer comps.close(logger)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go comps.service.RunSweeper(sweepCtx, config.TTLDuration(cfg.Session.SweepInterval, time.Minute))

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.RouterConfig{
		Service:        comps.service,
		Admin:          comps.admin,
		APIKey:         cfg.Server.APIKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 60*time.Second),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service",
			zap.String("addr", server.Addr),
			zap.String("llm_provider", cfg.LLM.Provider),
			zap.Bool("redis", cfg.Redis.Addr != ""),
			zap.Bool("postgres", cfg.Postgres.URL != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	stopSweeper()
	comps.feedback.Wait()
	return err
}
