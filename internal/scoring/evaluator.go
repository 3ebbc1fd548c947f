package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/interview-coach/internal/ai"
	"github.com/p-n-ai/interview-coach/internal/curriculum"
)

const (
	temperature = 0.7
	maxTokens   = 1024
)

// ErrUnavailable wraps every provider or parse failure that Evaluate does not
// replace with the fallback result.
var ErrUnavailable = errors.New("scoring unavailable")

// Completer is the slice of the AI gateway the evaluator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Options configures an Evaluator.
type Options struct {
	// MinAnswerLength defaults to DefaultMinAnswerLength when zero.
	MinAnswerLength int
	// Fallback returns FallbackResult instead of an error when the provider
	// fails or answers with something unparseable.
	Fallback bool
}

// Evaluator scores answers through an AI provider.
type Evaluator struct {
	ai   Completer
	opts Options
}

// NewEvaluator creates an Evaluator. c may be nil when opts.Fallback is set,
// in which case every answer gets the fallback result.
func NewEvaluator(c Completer, opts Options) *Evaluator {
	if opts.MinAnswerLength <= 0 {
		opts.MinAnswerLength = DefaultMinAnswerLength
	}
	return &Evaluator{ai: c, opts: opts}
}

// Evaluate scores answer to question using the rubric for domain.
// Answers that are too short fail with ErrAnswerTooShort and exhausted token
// budgets with ai.ErrBudgetExceeded, regardless of the fallback setting.
func (e *Evaluator) Evaluate(ctx context.Context, domain curriculum.Domain, question, answer string, task ai.TaskType) (Result, error) {
	answer, err := CheckAnswer(answer, e.opts.MinAnswerLength)
	if err != nil {
		return Result{}, err
	}

	r, err := e.evaluate(ctx, domain, strings.TrimSpace(question), answer, task)
	if err == nil {
		return r, nil
	}
	if errors.Is(err, ai.ErrBudgetExceeded) {
		return Result{}, err
	}
	if !e.opts.Fallback || ctx.Err() != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	slog.Warn("scoring failed, using fallback result",
		"domain", string(domain),
		"task", task.String(),
		"error", err,
	)
	return FallbackResult(), nil
}

func (e *Evaluator) evaluate(ctx context.Context, domain curriculum.Domain, question, answer string, task ai.TaskType) (Result, error) {
	if e.ai == nil {
		return Result{}, ai.ErrNoProviders
	}
	resp, err := e.ai.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "user", Content: BuildPrompt(domain, question, answer)},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Task:        task,
		JSON:        true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("score answer: %w", err)
	}
	return ParseResult(resp.Content)
}
