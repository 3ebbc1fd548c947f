package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/interview-coach/internal/progress"
	"github.com/p-n-ai/interview-coach/internal/report"
)

type catalogResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Levels any    `json:"levels"`
	Badges any    `json:"badges"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.cfg.Manager.Catalog()
	writeJSON(w, http.StatusOK, catalogResponse{
		ID:     cat.ID(),
		Name:   cat.Name(),
		Levels: cat.Levels(),
		Badges: cat.Badges(),
	})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.cfg.Manager.Start(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.cfg.Manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Manager.End(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.cfg.Manager.Overview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

type nextQuestionResponse struct {
	LevelID  int    `json:"levelId"`
	Done     bool   `json:"done"`
	Question any    `json:"question,omitempty"`
	Stars    string `json:"stars,omitempty"`
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	levelID, err := strconv.Atoi(r.PathValue("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid level %q", r.PathValue("level")))
		return
	}

	q, ok, err := s.cfg.Manager.NextQuestion(r.Context(), r.PathValue("id"), levelID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	resp := nextQuestionResponse{LevelID: levelID, Done: !ok}
	if ok {
		resp.Question = q
		if level, found := s.cfg.Manager.Catalog().LevelByID(levelID); found {
			resp.Stars = level.Difficulty.Stars()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type recordScoreRequest struct {
	LevelID    int    `json:"levelId"`
	QuestionID string `json:"questionId"`
	progress.Score
}

func (s *Server) handleRecordScore(w http.ResponseWriter, r *http.Request) {
	var req recordScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LevelID < 1 || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "levelId and questionId are required")
		return
	}

	out, err := s.cfg.Manager.Record(r.Context(), r.PathValue("id"), req.LevelID, req.QuestionID, req.Score)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type submitAnswerRequest struct {
	LevelID    int    `json:"levelId"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LevelID < 1 || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "levelId and questionId are required")
		return
	}

	out, err := s.cfg.Manager.SubmitAnswer(r.Context(), r.PathValue("id"), req.LevelID, req.QuestionID, req.Answer)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.cfg.Manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = report.Write(&buf, report.Input{
		SessionID:   sess.ID,
		GeneratedAt: s.cfg.Now().UTC(),
		Catalog:     s.cfg.Manager.Catalog(),
		State:       sess.State,
	})
	if err != nil {
		writeFailure(w, r, fmt.Errorf("building report: %w", err))
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="progress-%s.xlsx"`, sess.ID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Hub == nil {
		writeError(w, http.StatusNotFound, "notifications are disabled")
		return
	}
	id := r.PathValue("id")
	if _, err := s.cfg.Manager.Get(r.Context(), id); err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := s.cfg.Hub.ServeWS(w, r, id); err != nil {
		slog.Warn("notification stream ended", "session_id", id, "error", err)
	}
}
