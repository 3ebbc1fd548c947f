package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoProviders is returned when the router has nothing to call.
var ErrNoProviders = errors.New("no AI providers registered")

// CallObserver is told about every provider attempt the router makes.
type CallObserver func(provider string, task TaskType, elapsed time.Duration, err error)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithCallObserver registers fn to be called after each provider attempt.
func WithCallObserver(fn CallObserver) RouterOption {
	return func(r *Router) {
		r.observe = fn
	}
}

// WithBudget caps tokens per budget key. Requests whose context carries no
// key (see WithBudgetKey) are not metered.
func WithBudget(b BudgetChecker) RouterOption {
	return func(r *Router) {
		r.budget = b
	}
}

// Router tries registered providers in order until one succeeds.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	observe   CallObserver
	budget    BudgetChecker
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		providers: make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider to the end of the fallback chain. Registering a
// name twice replaces the provider but keeps its position.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Complete routes a request to the first provider that answers.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return CompletionResponse{}, ErrNoProviders
	}

	var key string
	if r.budget != nil {
		key = BudgetKeyFrom(ctx)
	}
	if key != "" {
		ok, err := r.budget.Check(ctx, key)
		switch {
		case err != nil:
			// Fail open when the budget store is unreachable.
			slog.Warn("budget check failed, allowing request", "key", key, "error", err)
		case !ok:
			return CompletionResponse{}, fmt.Errorf("%w: %s", ErrBudgetExceeded, key)
		}
	}

	var errs []error
	for _, name := range r.fallback {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		provider := r.providers[name]

		start := time.Now()
		resp, err := provider.Complete(ctx, req)
		if r.observe != nil {
			r.observe(name, req.Task, time.Since(start), err)
		}
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		if key != "" {
			if err := r.budget.Record(ctx, key, resp.TotalTokens()); err != nil {
				slog.Warn("recording token usage failed", "key", key, "error", err)
			}
		}
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", errors.Join(errs...))
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Names returns the provider names in fallback order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.fallback...)
}
