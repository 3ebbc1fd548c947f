package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks all COACH_ environment variables for a clean test. Empty
// values are treated as unset by Load.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"COACH_SERVER_PORT",
		"COACH_SERVER_HOST",
		"COACH_SERVER_ALLOWED_ORIGINS",
		"COACH_STORE_BACKEND",
		"COACH_DATABASE_URL",
		"COACH_DATABASE_MAX_CONNS",
		"COACH_DATABASE_MIN_CONNS",
		"COACH_CACHE_URL",
		"COACH_CACHE_SESSION_TTL",
		"COACH_AI_GOOGLE_API_KEY",
		"COACH_AI_GOOGLE_MODEL",
		"COACH_AI_OPENAI_API_KEY",
		"COACH_AI_OPENAI_MODEL",
		"COACH_AI_ANTHROPIC_API_KEY",
		"COACH_AI_ANTHROPIC_MODEL",
		"COACH_AI_OPENROUTER_API_KEY",
		"COACH_AI_OPENROUTER_MODEL",
		"COACH_AI_SESSION_TOKEN_BUDGET",
		"COACH_AI_PRACTICE_TOKEN_BUDGET",
		"COACH_AI_BUDGET_WINDOW",
		"COACH_AI_OLLAMA_ENABLED",
		"COACH_AI_OLLAMA_URL",
		"COACH_AI_OLLAMA_MODEL",
		"COACH_SCORING_MIN_ANSWER_LENGTH",
		"COACH_SCORING_FALLBACK",
		"COACH_LOG_LEVEL",
		"COACH_LOG_FORMAT",
		"COACH_CURRICULUM_PATH",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Server.Addr() = %q, want 0.0.0.0:8080", cfg.Server.Addr())
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Database.MaxConns != 25 || cfg.Database.MinConns != 5 {
		t.Errorf("Database conns = %d/%d, want 25/5", cfg.Database.MaxConns, cfg.Database.MinConns)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty", cfg.Database.URL)
	}
	if cfg.Cache.URL != "redis://localhost:6379" {
		t.Errorf("Cache.URL = %q, want redis://localhost:6379", cfg.Cache.URL)
	}
	if cfg.Cache.SessionTTL != 24*time.Hour {
		t.Errorf("Cache.SessionTTL = %v, want 24h", cfg.Cache.SessionTTL)
	}
	if cfg.AI.Google.Model != "gemini-2.0-flash" {
		t.Errorf("AI.Google.Model = %q, want gemini-2.0-flash", cfg.AI.Google.Model)
	}
	if cfg.AI.Anthropic.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("AI.Anthropic.Model = %q, want claude-haiku-4-5-20251001", cfg.AI.Anthropic.Model)
	}
	if cfg.AI.OpenRouter.Model != "qwen/qwen-2.5-72b-instruct" {
		t.Errorf("AI.OpenRouter.Model = %q, want qwen/qwen-2.5-72b-instruct", cfg.AI.OpenRouter.Model)
	}
	if b := cfg.AI.Budget; b.SessionTokens != 50000 || b.PracticeTokens != 20000 || b.Window != 24*time.Hour {
		t.Errorf("AI.Budget = %+v, want 50000/20000/24h", b)
	}
	if len(cfg.Server.AllowedOrigins) != 0 {
		t.Errorf("Server.AllowedOrigins = %v, want none", cfg.Server.AllowedOrigins)
	}
	if cfg.Scoring.MinAnswerLength != 20 || !cfg.Scoring.Fallback {
		t.Errorf("Scoring = %+v, want 20 and fallback on", cfg.Scoring)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
	if cfg.CurriculumPath != "" {
		t.Errorf("CurriculumPath = %q, want empty", cfg.CurriculumPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("COACH_SERVER_PORT", "9090")
	t.Setenv("COACH_STORE_BACKEND", "Postgres")
	t.Setenv("COACH_DATABASE_URL", "postgres://coach:coach@db:5432/coach")
	t.Setenv("COACH_CACHE_SESSION_TTL", "90m")
	t.Setenv("COACH_AI_GOOGLE_API_KEY", "g-key")
	t.Setenv("COACH_AI_ANTHROPIC_API_KEY", "a-key")
	t.Setenv("COACH_AI_OPENROUTER_MODEL", "meta-llama/llama-3.1-70b-instruct")
	t.Setenv("COACH_AI_SESSION_TOKEN_BUDGET", "0")
	t.Setenv("COACH_AI_BUDGET_WINDOW", "1h")
	t.Setenv("COACH_SERVER_ALLOWED_ORIGINS", "coach.example.com, *.coach.example.com,")
	t.Setenv("COACH_SCORING_MIN_ANSWER_LENGTH", "40")
	t.Setenv("COACH_SCORING_FALLBACK", "false")
	t.Setenv("COACH_LOG_LEVEL", "DEBUG")
	t.Setenv("COACH_LOG_FORMAT", "text")
	t.Setenv("COACH_CURRICULUM_PATH", "/etc/coach")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("Store.Backend = %q, want postgres", cfg.Store.Backend)
	}
	if cfg.Cache.SessionTTL != 90*time.Minute {
		t.Errorf("Cache.SessionTTL = %v, want 90m", cfg.Cache.SessionTTL)
	}
	if cfg.AI.Anthropic.APIKey != "a-key" {
		t.Errorf("AI.Anthropic.APIKey = %q", cfg.AI.Anthropic.APIKey)
	}
	if cfg.AI.OpenRouter.Model != "meta-llama/llama-3.1-70b-instruct" {
		t.Errorf("AI.OpenRouter.Model = %q", cfg.AI.OpenRouter.Model)
	}
	if cfg.AI.Budget.SessionTokens != 0 || cfg.AI.Budget.Window != time.Hour {
		t.Errorf("AI.Budget = %+v, want unlimited sessions over 1h", cfg.AI.Budget)
	}
	origins := cfg.Server.AllowedOrigins
	if len(origins) != 2 || origins[0] != "coach.example.com" || origins[1] != "*.coach.example.com" {
		t.Errorf("Server.AllowedOrigins = %q", origins)
	}
	if cfg.Scoring.MinAnswerLength != 40 || cfg.Scoring.Fallback {
		t.Errorf("Scoring = %+v", cfg.Scoring)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.CurriculumPath != "/etc/coach" {
		t.Errorf("CurriculumPath = %q", cfg.CurriculumPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("COACH_SERVER_PORT", "eighty")
	t.Setenv("COACH_CACHE_SESSION_TTL", "a day")

	cfg, _ := Load()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.SessionTTL != 24*time.Hour {
		t.Errorf("Cache.SessionTTL = %v, want 24h", cfg.Cache.SessionTTL)
	}
}

func validConfig() *Config {
	return &Config{
		Store:   StoreConfig{Backend: BackendMemory},
		Cache:   CacheConfig{URL: "redis://localhost:6379"},
		AI:      AIConfig{Budget: BudgetConfig{Window: time.Hour}},
		Scoring: ScoringConfig{MinAnswerLength: 20, Fallback: true},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"redis backend", func(c *Config) { c.Store.Backend = BackendRedis }, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "mongo" }, "COACH_STORE_BACKEND"},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }, "COACH_DATABASE_URL"},
		{"redis without url", func(c *Config) { c.Store.Backend = BackendRedis; c.Cache.URL = "" }, "COACH_CACHE_URL"},
		{"no provider and no fallback", func(c *Config) { c.Scoring.Fallback = false }, "AI provider"},
		{"provider without fallback", func(c *Config) { c.Scoring.Fallback = false; c.AI.OpenAI.APIKey = "k" }, ""},
		{"anthropic without fallback", func(c *Config) { c.Scoring.Fallback = false; c.AI.Anthropic.APIKey = "k" }, ""},
		{"zero budget window", func(c *Config) { c.AI.Budget.Window = 0 }, "COACH_AI_BUDGET_WINDOW"},
		{"zero min length", func(c *Config) { c.Scoring.MinAnswerLength = 0 }, "MIN_ANSWER_LENGTH"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "COACH_LOG_LEVEL"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "COACH_LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Backend = "mongo"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"COACH_STORE_BACKEND", "COACH_LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %s", err, want)
		}
	}
}

func TestHasAIProvider(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   bool
	}{
		{"none", func(*Config) {}, false},
		{"google", func(c *Config) { c.AI.Google.APIKey = "k" }, true},
		{"openai", func(c *Config) { c.AI.OpenAI.APIKey = "k" }, true},
		{"anthropic", func(c *Config) { c.AI.Anthropic.APIKey = "k" }, true},
		{"openrouter", func(c *Config) { c.AI.OpenRouter.APIKey = "k" }, true},
		{"ollama", func(c *Config) { c.AI.Ollama.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if cfg.HasAIProvider() != tt.want {
				t.Errorf("HasAIProvider() = %v, want %v", cfg.HasAIProvider(), tt.want)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := LogConfig{Level: tt.level}.SlogLevel()
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, %v; want %v, err %v", tt.level, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestOllamaEnabledParsing(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want bool
	}{
		{"true", "true", true},
		{"TRUE", "TRUE", true},
		{"false", "false", false},
		{"1", "1", true},
		{"0", "0", false},
		{"empty", "", false},
		{"invalid", "notabool", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.val != "" {
				t.Setenv("COACH_AI_OLLAMA_ENABLED", tt.val)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.AI.Ollama.Enabled != tt.want {
				t.Errorf("AI.Ollama.Enabled = %v, want %v", cfg.AI.Ollama.Enabled, tt.want)
			}
		})
	}
}
