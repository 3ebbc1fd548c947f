package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/interview-coach/internal/ai"
	"github.com/p-n-ai/interview-coach/internal/curriculum"
	"github.com/p-n-ai/interview-coach/internal/notify"
	"github.com/p-n-ai/interview-coach/internal/platform/metrics"
	"github.com/p-n-ai/interview-coach/internal/progress"
	"github.com/p-n-ai/interview-coach/internal/scoring"
)

// Publisher receives progress notifications for live subscribers.
type Publisher interface {
	Publish(sessionID string, msgs ...notify.Message)
	CloseSession(sessionID string)
}

// Scorer evaluates a free-text answer.
type Scorer interface {
	Evaluate(ctx context.Context, domain curriculum.Domain, question, answer string, task ai.TaskType) (scoring.Result, error)
}

// ManagerConfig holds dependencies for the session manager.
type ManagerConfig struct {
	Catalog  *curriculum.Catalog
	Store    Store       // defaults to a MemoryStore
	Events   EventLogger // defaults to NopEventLogger
	Notifier Publisher   // optional
	Scorer   Scorer      // required for SubmitAnswer
	Metrics  *metrics.Metrics
	// Domain selects the scoring rubric for track answers. Defaults to tech.
	Domain curriculum.Domain
	Now    func() time.Time
}

// Manager runs learning path sessions. Writes to one session are applied one
// at a time within a process, and the store's version check catches writes
// from other replicas. Different sessions proceed independently.
type Manager struct {
	catalog  *curriculum.Catalog
	store    Store
	events   EventLogger
	notifier Publisher
	scorer   Scorer
	metrics  *metrics.Metrics
	domain   curriculum.Domain
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Outcome is the result of recording one score.
type Outcome struct {
	Session      Session                    `json:"session"`
	EarnedBadges []string                   `json:"earnedBadges"`
	Transitions  []progress.LevelTransition `json:"transitions"`
	Result       *scoring.Result            `json:"result,omitempty"`
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	domain := cfg.Domain
	if domain == "" {
		domain = curriculum.DomainTech
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		catalog:  cfg.Catalog,
		store:    store,
		events:   events,
		notifier: cfg.Notifier,
		scorer:   cfg.Scorer,
		metrics:  cfg.Metrics,
		domain:   domain,
		now:      now,
		locks:    make(map[string]*sessionLock),
	}
}

// Catalog returns the catalog sessions are built from.
func (m *Manager) Catalog() *curriculum.Catalog {
	return m.catalog
}

// lock serializes writers of one session and returns the matching unlock.
func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Start creates a session with a fresh state.
func (m *Manager) Start(ctx context.Context) (Session, error) {
	now := m.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		State:     progress.NewState(m.catalog),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}

	if m.metrics != nil {
		m.metrics.SessionsStarted.Inc()
	}
	m.logEvent(sess.ID, EventSessionStarted, nil)
	slog.Info("session started", "session_id", sess.ID)
	return sess, nil
}

// Get returns a session.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.store.Get(ctx, id)
}

// Overview returns the read model for a session.
func (m *Manager) Overview(ctx context.Context, id string) (progress.Overview, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return progress.Overview{}, err
	}
	return progress.BuildOverview(m.catalog, sess.State), nil
}

// NextQuestion returns the first unanswered question of levelID, or false
// when every question in the level has been answered.
func (m *Manager) NextQuestion(ctx context.Context, id string, levelID int) (curriculum.Question, bool, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return curriculum.Question{}, false, err
	}
	level, ok := m.catalog.LevelByID(levelID)
	if !ok {
		return curriculum.Question{}, false, fmt.Errorf("%w: %d", ErrLevelNotFound, levelID)
	}
	lp, ok := sess.State.Level(levelID)
	if !ok {
		return curriculum.Question{}, false, fmt.Errorf("%w: %d", ErrLevelNotFound, levelID)
	}
	if lp.Status == progress.StatusLocked {
		return curriculum.Question{}, false, fmt.Errorf("%w: %d", ErrLevelLocked, levelID)
	}

	qid, ok := progress.NextUnansweredQuestionID(level, lp.CompletedQuestions)
	if !ok {
		return curriculum.Question{}, false, nil
	}
	q, _ := m.catalog.QuestionByID(levelID, qid)
	return q, true, nil
}

// maxSaveAttempts bounds how often Record reloads a session that another
// replica changed between read and write.
const maxSaveAttempts = 8

// Record applies a score to a session.
func (m *Manager) Record(ctx context.Context, id string, levelID int, questionID string, score progress.Score) (Outcome, error) {
	unlock := m.lock(id)
	defer unlock()

	var (
		sess        Session
		earned      []string
		transitions []progress.LevelTransition
		err         error
	)
	for attempt := 1; ; attempt++ {
		sess, earned, transitions, err = m.apply(ctx, id, levelID, questionID, score)
		if !errors.Is(err, ErrConflict) || attempt == maxSaveAttempts {
			break
		}
		slog.Debug("session changed during record, retrying",
			"session_id", id,
			"attempt", attempt,
		)
	}
	if err != nil {
		return Outcome{}, err
	}

	m.afterRecord(sess, levelID, questionID, score, earned, transitions)

	if earned == nil {
		earned = []string{}
	}
	return Outcome{Session: sess, EarnedBadges: earned, Transitions: transitions}, nil
}

// apply runs one read-modify-write of the session.
func (m *Manager) apply(ctx context.Context, id string, levelID int, questionID string, score progress.Score) (Session, []string, []progress.LevelTransition, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, nil, nil, err
	}
	if err := m.checkTarget(sess.State, levelID, questionID); err != nil {
		return Session{}, nil, nil, err
	}

	prev := sess.State
	next, earned := progress.RecordScore(m.catalog, prev, levelID, questionID, score)
	transitions := progress.Transitions(prev, next)

	sess.State = next
	sess.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, sess); err != nil {
		return Session{}, nil, nil, fmt.Errorf("save session: %w", err)
	}
	sess.Version++
	return sess, earned, transitions, nil
}

// SubmitAnswer scores a free-text answer and records the result.
func (m *Manager) SubmitAnswer(ctx context.Context, id string, levelID int, questionID, answer string) (Outcome, error) {
	if m.scorer == nil {
		return Outcome{}, fmt.Errorf("%w: no scorer configured", scoring.ErrUnavailable)
	}

	// Cheap checks before paying for a model call.
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if err := m.checkTarget(sess.State, levelID, questionID); err != nil {
		return Outcome{}, err
	}
	q, _ := m.catalog.QuestionByID(levelID, questionID)

	ctx = ai.WithBudgetKey(ctx, ai.BudgetKey(ai.ScopeSession, id))
	result, err := m.scorer.Evaluate(ctx, m.domain, q.Question, answer, ai.TaskScoring)
	if err != nil {
		return Outcome{}, err
	}
	if result.Fallback && m.metrics != nil {
		m.metrics.ScoringFallbacks.Inc()
	}

	out, err := m.Record(ctx, id, levelID, questionID, result.Score())
	if err != nil {
		return Outcome{}, err
	}
	out.Result = &result
	return out, nil
}

// End discards a session and disconnects its subscribers.
func (m *Manager) End(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	if m.notifier != nil {
		m.notifier.CloseSession(id)
	}
	if m.metrics != nil {
		m.metrics.SessionsEnded.Inc()
	}
	m.logEvent(id, EventSessionEnded, nil)
	slog.Info("session ended", "session_id", id)
	return nil
}

func (m *Manager) checkTarget(s progress.State, levelID int, questionID string) error {
	if _, ok := m.catalog.LevelByID(levelID); !ok {
		return fmt.Errorf("%w: %d", ErrLevelNotFound, levelID)
	}
	lp, ok := s.Level(levelID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrLevelNotFound, levelID)
	}
	if _, ok := m.catalog.QuestionByID(levelID, questionID); !ok {
		return fmt.Errorf("%w: %q in level %d", ErrQuestionNotFound, questionID, levelID)
	}
	if lp.Status == progress.StatusLocked {
		return fmt.Errorf("%w: %d", ErrLevelLocked, levelID)
	}
	return nil
}

func (m *Manager) afterRecord(sess Session, levelID int, questionID string, score progress.Score, earned []string, transitions []progress.LevelTransition) {
	m.logEvent(sess.ID, EventScoreRecorded, map[string]any{
		"level_id":      levelID,
		"question_id":   questionID,
		"average_score": score.AverageScore,
		"streak":        sess.State.StreakCount,
	})
	if m.metrics != nil {
		m.metrics.ScoresRecorded.WithLabelValues(metrics.LevelLabel(levelID)).Inc()
	}

	msgs := []notify.Message{{Type: notify.KindStateUpdated, LevelID: levelID, Data: sess.State}}

	for _, tr := range transitions {
		switch {
		case tr.To == progress.StatusCompleted:
			lp, _ := sess.State.Level(tr.LevelID)
			m.logEvent(sess.ID, EventLevelCompleted, map[string]any{
				"level_id":  tr.LevelID,
				"avg_score": lp.AvgScore,
			})
			if m.metrics != nil {
				m.metrics.LevelsCompleted.WithLabelValues(metrics.LevelLabel(tr.LevelID)).Inc()
			}
			msgs = append(msgs, notify.Message{Type: notify.KindLevelCompleted, LevelID: tr.LevelID})
			slog.Info("level completed", "session_id", sess.ID, "level_id", tr.LevelID, "avg_score", lp.AvgScore)

		case tr.From == progress.StatusLocked && tr.To == progress.StatusInProgress:
			m.logEvent(sess.ID, EventLevelUnlocked, map[string]any{"level_id": tr.LevelID})
			if m.metrics != nil {
				m.metrics.LevelsUnlocked.WithLabelValues(metrics.LevelLabel(tr.LevelID)).Inc()
			}
			msgs = append(msgs, notify.Message{Type: notify.KindLevelUnlocked, LevelID: tr.LevelID})
			slog.Info("level unlocked", "session_id", sess.ID, "level_id", tr.LevelID)
		}
	}

	for _, id := range earned {
		m.logEvent(sess.ID, EventBadgeEarned, map[string]any{"badge_id": id})
		if m.metrics != nil {
			m.metrics.BadgesEarned.WithLabelValues(id).Inc()
		}
		var data any
		if b, ok := m.catalog.BadgeByID(id); ok {
			data = b
		}
		msgs = append(msgs, notify.Message{Type: notify.KindBadgeEarned, BadgeID: id, Data: data})
		slog.Info("badge earned", "session_id", sess.ID, "badge_id", id)
	}

	if m.notifier != nil {
		m.notifier.Publish(sess.ID, msgs...)
	}
}

func (m *Manager) logEvent(sessionID, eventType string, data map[string]any) {
	if err := m.events.LogEvent(Event{
		SessionID: sessionID,
		EventType: eventType,
		Data:      data,
		CreatedAt: m.now().UTC(),
	}); err != nil {
		slog.Warn("failed to log event",
			"type", eventType,
			"session_id", sessionID,
			"error", err,
		)
	}
}
