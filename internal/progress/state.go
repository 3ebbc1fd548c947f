// Package progress tracks a learner's path through a curriculum track:
// per-level completion, rolling averages, level unlocking, streaks and badges.
//
// Every exported operation is a pure function over a State value. RecordScore
// returns a new State and never mutates its input, so callers hold the
// current value and swap it in after each transition.
package progress

import (
	"slices"

	"github.com/p-n-ai/interview-coach/internal/curriculum"
)

// Status is the lifecycle position of a level.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Score is the evaluation tuple produced by the scoring provider.
// AverageScore is trusted as given and never recomputed from the sub-scores.
type Score struct {
	StructureScore float64 `json:"structureScore"`
	ClarityScore   float64 `json:"clarityScore"`
	TechnicalScore float64 `json:"technicalScore"`
	AverageScore   float64 `json:"averageScore"`
}

// QuestionScore is the recorded score for one answered question.
type QuestionScore struct {
	QuestionID string `json:"questionId"`
	Score
}

// LevelProgress is the mutable record for one level.
type LevelProgress struct {
	LevelID            int             `json:"levelId"`
	CompletedQuestions []string        `json:"completedQuestions"`
	Scores             []QuestionScore `json:"scores"`
	AvgScore           float64         `json:"avgScore"`
	Status             Status          `json:"status"`
}

// IsCompleted reports whether questionID has been answered.
func (p LevelProgress) IsCompleted(questionID string) bool {
	return slices.Contains(p.CompletedQuestions, questionID)
}

// ScoreFor returns the recorded score for questionID.
func (p LevelProgress) ScoreFor(questionID string) (QuestionScore, bool) {
	for _, s := range p.Scores {
		if s.QuestionID == questionID {
			return s, true
		}
	}
	return QuestionScore{}, false
}

// State is the learning path state of one session.
type State struct {
	Levels                  []LevelProgress `json:"levels"`
	EarnedBadges            []string        `json:"earnedBadges"`
	TotalQuestionsCompleted int             `json:"totalQuestionsCompleted"`
	TotalQuestions          int             `json:"totalQuestions"`
	StreakCount             int             `json:"streakCount"`
}

// NewState builds the starting state for a catalog: the first level in
// progress, every other level locked, nothing answered.
func NewState(cat *curriculum.Catalog) State {
	levels := cat.Levels()
	s := State{
		Levels:         make([]LevelProgress, len(levels)),
		EarnedBadges:   []string{},
		TotalQuestions: cat.TotalQuestions(),
	}
	for i, l := range levels {
		status := StatusLocked
		if i == 0 {
			status = StatusInProgress
		}
		s.Levels[i] = LevelProgress{
			LevelID:            l.ID,
			CompletedQuestions: []string{},
			Scores:             []QuestionScore{},
			Status:             status,
		}
	}
	return s
}

// Level returns the progress record for levelID.
func (s State) Level(levelID int) (LevelProgress, bool) {
	for _, lp := range s.Levels {
		if lp.LevelID == levelID {
			return lp, true
		}
	}
	return LevelProgress{}, false
}

// HasBadge reports whether badgeID has been earned.
func (s State) HasBadge(badgeID string) bool {
	return slices.Contains(s.EarnedBadges, badgeID)
}

// Clone returns a deep copy sharing no slices with s.
func (s State) Clone() State {
	c := s
	c.Levels = make([]LevelProgress, len(s.Levels))
	for i, lp := range s.Levels {
		lp.CompletedQuestions = append([]string{}, lp.CompletedQuestions...)
		lp.Scores = append([]QuestionScore{}, lp.Scores...)
		c.Levels[i] = lp
	}
	c.EarnedBadges = append([]string{}, s.EarnedBadges...)
	return c
}

func (s *State) level(levelID int) *LevelProgress {
	for i := range s.Levels {
		if s.Levels[i].LevelID == levelID {
			return &s.Levels[i]
		}
	}
	return nil
}

func (s *State) recountCompleted() {
	total := 0
	for _, lp := range s.Levels {
		total += len(lp.CompletedQuestions)
	}
	s.TotalQuestionsCompleted = total
}
