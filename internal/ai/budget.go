package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBudgetExceeded is returned when the caller has used up its token budget
// for the current window.
var ErrBudgetExceeded = errors.New("AI token budget exceeded")

// Budget scopes. A budget key is "<scope>:<id>".
const (
	ScopeSession  = "session"
	ScopePractice = "practice"
)

// BudgetKey builds the key used to track usage for id within scope.
func BudgetKey(scope, id string) string {
	return scope + ":" + id
}

func budgetScope(key string) string {
	scope, _, _ := strings.Cut(key, ":")
	return scope
}

// BudgetChecker checks and records token usage against budgets.
type BudgetChecker interface {
	// Check returns true if key has budget remaining.
	Check(ctx context.Context, key string) (bool, error)
	// Record adds tokens to the usage for key.
	Record(ctx context.Context, key string, tokens int) error
	// Usage returns current usage and the limit for key. A limit of zero
	// means unlimited.
	Usage(ctx context.Context, key string) (used int64, limit int64, err error)
}

// Limits maps a scope to its token limit per window. Scopes that are missing
// or have a non-positive limit are unlimited.
type Limits map[string]int64

func (l Limits) of(key string) int64 {
	if n := l[budgetScope(key)]; n > 0 {
		return n
	}
	return 0
}

type budgetCtxKey struct{}

// WithBudgetKey attaches the key whose budget pays for completions made
// with ctx.
func WithBudgetKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, budgetCtxKey{}, key)
}

// BudgetKeyFrom returns the key set by WithBudgetKey, or "".
func BudgetKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(budgetCtxKey{}).(string)
	return key
}

type budgetUsage struct {
	used    int64
	resetAt time.Time
}

// InMemoryBudget tracks usage per process. Usage for a key resets once its
// window has passed since the first recorded call.
type InMemoryBudget struct {
	limits Limits
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	usage map[string]budgetUsage
}

// NewInMemoryBudget creates an in-memory budget tracker.
func NewInMemoryBudget(limits Limits, window time.Duration) *InMemoryBudget {
	return &InMemoryBudget{
		limits: limits,
		window: window,
		now:    time.Now,
		usage:  make(map[string]budgetUsage),
	}
}

// current returns the live usage for key. Callers hold b.mu.
func (b *InMemoryBudget) current(key string) budgetUsage {
	u, ok := b.usage[key]
	if ok && b.window > 0 && !b.now().Before(u.resetAt) {
		delete(b.usage, key)
		return budgetUsage{}
	}
	return u
}

func (b *InMemoryBudget) Check(_ context.Context, key string) (bool, error) {
	limit := b.limits.of(key)
	if limit == 0 {
		return true, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(key).used < limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, key string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.current(key)
	if u.resetAt.IsZero() {
		u.resetAt = b.now().Add(b.window)
	}
	u.used += int64(tokens)
	b.usage[key] = u
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, key string) (int64, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(key).used, b.limits.of(key), nil
}

const redisBudgetPrefix = "coach:budget:"

// RedisBudget shares usage across replicas. Each key is a counter that
// expires one window after its first increment.
type RedisBudget struct {
	client redis.Cmdable
	limits Limits
	window time.Duration
}

// NewRedisBudget creates a Redis-backed budget tracker.
func NewRedisBudget(client redis.Cmdable, limits Limits, window time.Duration) *RedisBudget {
	return &RedisBudget{client: client, limits: limits, window: window}
}

func (b *RedisBudget) used(ctx context.Context, key string) (int64, error) {
	n, err := b.client.Get(ctx, redisBudgetPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get budget usage: %w", err)
	}
	return n, nil
}

func (b *RedisBudget) Check(ctx context.Context, key string) (bool, error) {
	limit := b.limits.of(key)
	if limit == 0 {
		return true, nil
	}
	used, err := b.used(ctx, key)
	if err != nil {
		return false, err
	}
	return used < limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, key string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	k := redisBudgetPrefix + key
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, k, int64(tokens))
		if b.window > 0 {
			pipe.ExpireNX(ctx, k, b.window)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record budget usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, key string) (int64, int64, error) {
	used, err := b.used(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return used, b.limits.of(key), nil
}
