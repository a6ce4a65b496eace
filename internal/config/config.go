package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"quiz-agent-service/internal/llm"
)

type Config struct {
	Server     ServerConfig        `yaml:"server"`
	Redis      RedisConfig         `yaml:"redis"`
	Postgres   PostgresConfig      `yaml:"postgres"`
	SQLite     SQLiteConfig        `yaml:"sqlite"`
	RabbitMQ   RabbitMQConfig      `yaml:"rabbitmq"`
	Session    SessionConfig       `yaml:"session"`
	LLM        llm.Config          `yaml:"llm"`
	Embeddings llm.EmbeddingConfig `yaml:"embeddings"`
	Retrieval  RetrievalConfig     `yaml:"retrieval"`
	Evaluation EvaluationConfig    `yaml:"evaluation"`
	Generation GenerationConfig    `yaml:"generation"`
	Log        LogConfig           `yaml:"log"`
	Questions  QuestionsConfig     `yaml:"questions"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	APIKey         string   `yaml:"api_key"`
	ReadTimeout    string   `yaml:"read_timeout"`
	WriteTimeout   string   `yaml:"write_timeout"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// TTL applies to cached questions.
	TTL string `yaml:"ttl"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type SessionConfig struct {
	TTL           string `yaml:"ttl"`
	SweepInterval string `yaml:"sweep_interval"`
	SweepBatch    int    `yaml:"sweep_batch"`
}

type RetrievalConfig struct {
	Candidates   int    `yaml:"candidates"`
	RecentWindow int    `yaml:"recent_window"`
	TopK         int    `yaml:"top_k"`
	Timeout      string `yaml:"timeout"`
}

type EvaluationConfig struct {
	JudgeTimeout string `yaml:"judge_timeout"`
}

type GenerationConfig struct {
	Multiplier  int     `yaml:"multiplier"`
	Floor       float64 `yaml:"floor"`
	Concurrency int     `yaml:"concurrency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type QuestionsConfig struct {
	SeedFile string `yaml:"seed_file"`
	CacheTTL string `yaml:"cache_ttl"`
}

// Default returns the configuration used for anything the YAML leaves out.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  "15s",
			WriteTimeout: "60s",
		},
		Redis:      RedisConfig{TTL: "10m"},
		SQLite:     SQLiteConfig{},
		RabbitMQ:   RabbitMQConfig{Exchange: "quiz.events"},
		Session:    SessionConfig{TTL: "30m", SweepInterval: "1m", SweepBatch: 100},
		LLM:        llm.DefaultConfig(),
		Embeddings: llm.DefaultEmbeddingConfig(),
		Retrieval:  RetrievalConfig{Candidates: 50, RecentWindow: 3, TopK: 5, Timeout: "10s"},
		Evaluation: EvaluationConfig{JudgeTimeout: "15s"},
		Generation: GenerationConfig{Multiplier: 3, Floor: 7.0, Concurrency: 4},
		Log:        LogConfig{Level: "info", Format: "json"},
		Questions:  QuestionsConfig{SeedFile: "config/questions.json", CacheTTL: "10m"},
	}
}

// LoadEnv reads .env files into the process environment. A missing file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads YAML config from path over the defaults and applies environment
// overrides. A missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Port, "PORT")
	set(&cfg.Server.APIKey, "QUIZ_API_KEY")
	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Postgres.URL, "POSTGRES_URL")
	set(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	set(&cfg.SQLite.Path, "SQLITE_PATH")
	set(&cfg.LLM.Provider, "LLM_PROVIDER")
	set(&cfg.LLM.Model, "LLM_MODEL")
	set(&cfg.Log.Level, "LOG_LEVEL")
	if v := getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Embeddings.Provider == "openai" && cfg.Embeddings.APIKey == "" {
		cfg.Embeddings.APIKey = getenv("OPENAI_API_KEY")
	}
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Embeddings.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Retrieval.Candidates <= 0 || c.Retrieval.TopK <= 0 || c.Retrieval.RecentWindow <= 0 {
		errs = append(errs, errors.New("retrieval: candidates, top_k and recent_window must be positive"))
	}
	if c.Generation.Floor < 0 || c.Generation.Floor > 10 {
		errs = append(errs, fmt.Errorf("generation: floor %.2f outside 0..10", c.Generation.Floor))
	}
	if c.Generation.Multiplier <= 0 || c.Generation.Concurrency <= 0 {
		errs = append(errs, errors.New("generation: multiplier and concurrency must be positive"))
	}
	if c.Session.SweepBatch <= 0 {
		errs = append(errs, errors.New("session: sweep_batch must be positive"))
	}
	return errors.Join(errs...)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
