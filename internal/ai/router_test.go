package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/interview-coach/internal/ai"
)

func hello() ai.CompletionRequest {
	return ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
		Task:     ai.TaskScoring,
	}
}

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("Hello!")
	router.Register("openai", mock)

	resp, err := router.Complete(context.Background(), hello())

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
	if mock.LastRequest() == nil || mock.LastRequest().Task != ai.TaskScoring {
		t.Errorf("LastRequest() = %+v, want the scoring request", mock.LastRequest())
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()

	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")

	router.Register("openai", failing)
	router.Register("ollama", fallback)

	resp, err := router.Complete(context.Background(), hello())

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
	if failing.Calls() != 1 || fallback.Calls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.Calls(), fallback.Calls())
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()
	rateLimited := errors.New("fail 1")

	router.Register("openai", &ai.MockProvider{Err: rateLimited})
	router.Register("ollama", &ai.MockProvider{Err: errors.New("fail 2")})

	_, err := router.Complete(context.Background(), hello())

	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
	if !errors.Is(err, rateLimited) {
		t.Errorf("Complete() error = %v, want it to wrap every provider error", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), hello())

	if !errors.Is(err, ai.ErrNoProviders) {
		t.Fatalf("Complete() error = %v, want ErrNoProviders", err)
	}
}

func TestRouter_CancelledContext(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("never")
	router.Register("mock", mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := router.Complete(ctx, hello()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Complete() error = %v, want context.Canceled", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("provider called %d times after cancel", mock.Calls())
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()

	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))
	router.Register("first", ai.NewMockProvider("first again"))

	if got := router.Names(); len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Names() = %v, want [first second]", got)
	}

	resp, err := router.Complete(context.Background(), hello())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first again" {
		t.Errorf("Content = %q, want %q (re-registered provider keeps its slot)", resp.Content, "first again")
	}
}

func TestRouter_CallObserver(t *testing.T) {
	type call struct {
		provider string
		task     ai.TaskType
		failed   bool
	}
	var calls []call
	router := ai.NewRouter(ai.WithCallObserver(func(provider string, task ai.TaskType, _ time.Duration, err error) {
		calls = append(calls, call{provider, task, err != nil})
	}))
	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	router.Register("up", ai.NewMockProvider("ok"))

	if _, err := router.Complete(context.Background(), hello()); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	want := []call{{"down", ai.TaskScoring, true}, {"up", ai.TaskScoring, false}}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

// failingBudget is a BudgetChecker whose store is unreachable.
type failingBudget struct{}

func (failingBudget) Check(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingBudget) Record(context.Context, string, int) error {
	return errors.New("connection refused")
}

func (failingBudget) Usage(context.Context, string) (int64, int64, error) {
	return 0, 0, errors.New("connection refused")
}

func TestRouter_Budget(t *testing.T) {
	budget := ai.NewInMemoryBudget(ai.Limits{ai.ScopeSession: 40}, time.Hour)
	router := ai.NewRouter(ai.WithBudget(budget))
	mock := ai.NewMockProvider("twelve chars")
	router.Register("mock", mock)

	key := ai.BudgetKey(ai.ScopeSession, "s1")
	ctx := ai.WithBudgetKey(context.Background(), key)

	// Each call costs 10 input + 12 output tokens.
	for i := range 2 {
		if _, err := router.Complete(ctx, hello()); err != nil {
			t.Fatalf("call %d: Complete() error = %v", i+1, err)
		}
	}
	if used, _, _ := budget.Usage(ctx, key); used != 44 {
		t.Errorf("Usage() = %d, want 44", used)
	}

	_, err := router.Complete(ctx, hello())
	if !errors.Is(err, ai.ErrBudgetExceeded) {
		t.Fatalf("Complete() error = %v, want ErrBudgetExceeded", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("provider called %d times, want 2 (no call once over budget)", mock.Calls())
	}

	// Requests without a key are not metered.
	if _, err := router.Complete(context.Background(), hello()); err != nil {
		t.Errorf("unkeyed Complete() error = %v", err)
	}
}

func TestRouter_BudgetStoreDown(t *testing.T) {
	router := ai.NewRouter(ai.WithBudget(failingBudget{}))
	router.Register("mock", ai.NewMockProvider("ok"))

	ctx := ai.WithBudgetKey(context.Background(), ai.BudgetKey(ai.ScopePractice, "10.0.0.1"))
	if _, err := router.Complete(ctx, hello()); err != nil {
		t.Fatalf("Complete() error = %v, want the request allowed", err)
	}
}

func TestRouter_BudgetNotChargedOnFailure(t *testing.T) {
	budget := ai.NewInMemoryBudget(ai.Limits{ai.ScopeSession: 100}, time.Hour)
	router := ai.NewRouter(ai.WithBudget(budget))
	router.Register("down", &ai.MockProvider{Err: errors.New("down")})

	key := ai.BudgetKey(ai.ScopeSession, "s1")
	ctx := ai.WithBudgetKey(context.Background(), key)
	if _, err := router.Complete(ctx, hello()); err == nil {
		t.Fatal("Complete() should fail")
	}
	if used, _, _ := budget.Usage(ctx, key); used != 0 {
		t.Errorf("Usage() = %d, want 0 after a failed call", used)
	}
}
