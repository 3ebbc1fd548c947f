package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/interview-coach/internal/ai"
	"github.com/p-n-ai/interview-coach/internal/api"
	"github.com/p-n-ai/interview-coach/internal/curriculum"
	"github.com/p-n-ai/interview-coach/internal/notify"
	"github.com/p-n-ai/interview-coach/internal/platform/cache"
	"github.com/p-n-ai/interview-coach/internal/platform/config"
	"github.com/p-n-ai/interview-coach/internal/platform/database"
	"github.com/p-n-ai/interview-coach/internal/platform/metrics"
	"github.com/p-n-ai/interview-coach/internal/scoring"
	"github.com/p-n-ai/interview-coach/internal/session"
)

const notifyBuffer = 32

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		slog.Error("invalid log config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // scoring waits on the model
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"store", cfg.Store.Backend,
			"ai_providers", app.providers,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// app is the wired service. Close releases backend connections.
type app struct {
	handler   http.Handler
	manager   *session.Manager
	providers []string
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loader, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		return nil, err
	}

	a := &app{}
	be, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, be.close...)

	m := metrics.New()
	router := newAIRouter(cfg.AI, m, be.budget)
	a.providers = router.Names()

	// A nil completer makes every answer take the fallback path.
	var completer scoring.Completer
	if router.HasProvider() {
		completer = router
	} else {
		slog.Warn("no AI provider configured, answers get the fallback score")
	}
	scorer := scoring.NewEvaluator(completer, scoring.Options{
		MinAnswerLength: cfg.Scoring.MinAnswerLength,
		Fallback:        cfg.Scoring.Fallback,
	})

	hub := notify.NewHub(notifyBuffer, notify.WithOriginPatterns(cfg.Server.AllowedOrigins...))
	a.manager = session.NewManager(session.ManagerConfig{
		Catalog:  loader.Catalog(),
		Store:    be.store,
		Events:   be.events,
		Notifier: hub,
		Scorer:   scorer,
		Metrics:  m,
	})

	a.handler = api.NewServer(api.Config{
		Manager: a.manager,
		Bank:    loader,
		Scorer:  scorer,
		Hub:     hub,
		Metrics: m,
		Checks:  be.checks,
	})
	return a, nil
}

// newLogger builds the slog logger described by cfg.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// newAIRouter registers every configured provider in fallback order:
// Google, OpenAI, Anthropic, OpenRouter, then a local Ollama. budget may be
// nil.
func newAIRouter(cfg config.AIConfig, m *metrics.Metrics, budget ai.BudgetChecker) *ai.Router {
	opts := []ai.RouterOption{
		ai.WithCallObserver(func(provider string, task ai.TaskType, elapsed time.Duration, err error) {
			m.ObserveAICall(provider, task.String(), elapsed, err)
		}),
	}
	if budget != nil {
		opts = append(opts, ai.WithBudget(budget))
	}
	router := ai.NewRouter(opts...)

	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model)))
	}
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithModel(cfg.OpenAI.Model)))
	}
	if cfg.Anthropic.APIKey != "" {
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, ai.WithAnthropicModel(cfg.Anthropic.Model))
		if err != nil {
			slog.Warn("skipping anthropic provider", "error", err)
		} else {
			router.Register("anthropic", p)
		}
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, ai.WithModel(cfg.OpenRouter.Model)))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithModel(cfg.Ollama.Model)))
	}
	return router
}

type backend struct {
	store  session.Store
	events session.EventLogger
	budget ai.BudgetChecker
	checks map[string]api.HealthCheck
	close  []func()
}

func budgetLimits(cfg config.BudgetConfig) ai.Limits {
	return ai.Limits{
		ai.ScopeSession:  int64(cfg.SessionTokens),
		ai.ScopePractice: int64(cfg.PracticeTokens),
	}
}

// newBackend wires session storage. Token budgets live next to the sessions
// when they are shared through Redis and per process otherwise.
func newBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	limits := budgetLimits(cfg.AI.Budget)

	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		return &backend{
			store:  session.NewMemoryStore(),
			events: session.NopEventLogger{},
			budget: ai.NewInMemoryBudget(limits, cfg.AI.Budget.Window),
		}, nil

	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		slog.Info("using redis session store", "ttl", cfg.Cache.SessionTTL)
		return &backend{
			store:  session.NewRedisStore(c.Client, cfg.Cache.SessionTTL),
			events: session.NopEventLogger{},
			budget: ai.NewRedisBudget(c.Client, limits, cfg.AI.Budget.Window),
			checks: map[string]api.HealthCheck{"redis": c.HealthCheck},
			close:  []func(){func() { _ = c.Close() }},
		}, nil

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := session.EnsureSchema(ctx, db.Pool); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		store, err := session.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("using postgres session store")
		return &backend{
			store:  store,
			events: session.NewPostgresEventLogger(db.Pool),
			budget: ai.NewInMemoryBudget(limits, cfg.AI.Budget.Window),
			checks: map[string]api.HealthCheck{"postgres": db.HealthCheck},
			close:  []func(){db.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
