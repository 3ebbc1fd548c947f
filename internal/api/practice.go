package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/p-n-ai/interview-coach/internal/ai"
	"github.com/p-n-ai/interview-coach/internal/curriculum"
	"github.com/p-n-ai/interview-coach/internal/scoring"
)

type practiceQuestionResponse struct {
	Domain   curriculum.Domain `json:"domain"`
	Question string            `json:"question"`
}

func (s *Server) practiceDomain(r *http.Request) (curriculum.Domain, error) {
	d, err := curriculum.ParseDomain(r.PathValue("domain"))
	if err != nil {
		return "", fmt.Errorf("%w: %q", errUnknownDomain, r.PathValue("domain"))
	}
	return d, nil
}

func (s *Server) handlePracticeQuestion(w http.ResponseWriter, r *http.Request) {
	d, err := s.practiceDomain(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if s.cfg.Bank == nil {
		writeFailure(w, r, fmt.Errorf("%w: %q has no questions", errUnknownDomain, d))
		return
	}
	q, ok := s.cfg.Bank.RandomQuestion(d)
	if !ok {
		writeFailure(w, r, fmt.Errorf("%w: %q has no questions", errUnknownDomain, d))
		return
	}
	writeJSON(w, http.StatusOK, practiceQuestionResponse{Domain: d, Question: q})
}

type practiceEvaluateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type practiceEvaluateResponse struct {
	scoring.Result
	Label string `json:"label"`
}

// handlePracticeEvaluate scores a free-form answer without touching any
// session.
func (s *Server) handlePracticeEvaluate(w http.ResponseWriter, r *http.Request) {
	d, err := s.practiceDomain(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	var req practiceEvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if s.cfg.Scorer == nil {
		writeFailure(w, r, fmt.Errorf("%w: no scorer configured", scoring.ErrUnavailable))
		return
	}

	ctx := ai.WithBudgetKey(r.Context(), ai.BudgetKey(ai.ScopePractice, clientIP(r)))
	res, err := s.cfg.Scorer.Evaluate(ctx, d, req.Question, req.Answer, ai.TaskPractice)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, practiceEvaluateResponse{Result: res, Label: res.Label()})
}

// clientIP is the remote address without its port. Practice budgets are
// charged per client since practice calls have no session.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
