// Package config loads application configuration from environment variables.
// All variables use the COACH_ prefix.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Store          StoreConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	AI             AIConfig
	Scoring        ScoringConfig
	Log            LogConfig
	CurriculumPath string // empty uses the embedded track
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
	// AllowedOrigins are host patterns accepted on WebSocket upgrades in
	// addition to the request's own host.
	AllowedOrigins []string
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects where sessions live.
type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings.
type CacheConfig struct {
	URL        string
	SessionTTL time.Duration
}

// AIConfig holds configuration for the scoring providers.
type AIConfig struct {
	Google     GoogleConfig
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Budget     BudgetConfig
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// AnthropicConfig holds Anthropic Claude provider settings.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
	Model  string
}

// BudgetConfig caps model tokens per session and per practice client.
// A limit of zero or less disables that cap.
type BudgetConfig struct {
	SessionTokens  int
	PracticeTokens int
	Window         time.Duration
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// ScoringConfig holds answer evaluation settings.
type ScoringConfig struct {
	MinAnswerLength int
	Fallback        bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with COACH_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("COACH_SERVER_PORT", 8080),
			Host:           envStr("COACH_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: envList("COACH_SERVER_ALLOWED_ORIGINS"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(envStr("COACH_STORE_BACKEND", BackendMemory)),
		},
		Database: DatabaseConfig{
			URL:      envStr("COACH_DATABASE_URL", ""),
			MaxConns: envInt("COACH_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("COACH_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL:        envStr("COACH_CACHE_URL", "redis://localhost:6379"),
			SessionTTL: envDuration("COACH_CACHE_SESSION_TTL", 24*time.Hour),
		},
		AI: AIConfig{
			Google: GoogleConfig{
				APIKey: envStr("COACH_AI_GOOGLE_API_KEY", ""),
				Model:  envStr("COACH_AI_GOOGLE_MODEL", "gemini-2.0-flash"),
			},
			OpenAI: OpenAIConfig{
				APIKey: envStr("COACH_AI_OPENAI_API_KEY", ""),
				Model:  envStr("COACH_AI_OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				APIKey: envStr("COACH_AI_ANTHROPIC_API_KEY", ""),
				Model:  envStr("COACH_AI_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("COACH_AI_OPENROUTER_API_KEY", ""),
				Model:  envStr("COACH_AI_OPENROUTER_MODEL", "qwen/qwen-2.5-72b-instruct"),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("COACH_AI_OLLAMA_ENABLED", false),
				URL:     envStr("COACH_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("COACH_AI_OLLAMA_MODEL", "llama3:8b"),
			},
			Budget: BudgetConfig{
				SessionTokens:  envInt("COACH_AI_SESSION_TOKEN_BUDGET", 50000),
				PracticeTokens: envInt("COACH_AI_PRACTICE_TOKEN_BUDGET", 20000),
				Window:         envDuration("COACH_AI_BUDGET_WINDOW", 24*time.Hour),
			},
		},
		Scoring: ScoringConfig{
			MinAnswerLength: envInt("COACH_SCORING_MIN_ANSWER_LENGTH", 20),
			Fallback:        envBool("COACH_SCORING_FALLBACK", true),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envStr("COACH_LOG_LEVEL", "info")),
			Format: strings.ToLower(envStr("COACH_LOG_FORMAT", "json")),
		},
		CurriculumPath: envStr("COACH_CURRICULUM_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
// It reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("COACH_DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("COACH_STORE_BACKEND must be memory, redis or postgres, got %q", c.Store.Backend))
	}

	if c.Store.Backend == BackendRedis && c.Cache.URL == "" {
		errs = append(errs, fmt.Errorf("COACH_CACHE_URL is required for the redis store"))
	}

	if !c.HasAIProvider() && !c.Scoring.Fallback {
		errs = append(errs, fmt.Errorf("at least one AI provider must be configured when fallback scoring is off"))
	}

	if c.AI.Budget.Window <= 0 {
		errs = append(errs, fmt.Errorf("COACH_AI_BUDGET_WINDOW must be positive, got %s", c.AI.Budget.Window))
	}

	if c.Scoring.MinAnswerLength < 1 {
		errs = append(errs, fmt.Errorf("COACH_SCORING_MIN_ANSWER_LENGTH must be positive, got %d", c.Scoring.MinAnswerLength))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("COACH_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.Google.APIKey != "" ||
		c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch l.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("COACH_LOG_LEVEL must be debug, info, warn or error, got %q", l.Level)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
