package progress

import (
	"github.com/p-n-ai/interview-coach/internal/curriculum"
)

// LevelTransition records a level status change between two states.
type LevelTransition struct {
	LevelID int    `json:"levelId"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

// Transitions lists the levels whose status differs between prev and next.
func Transitions(prev, next State) []LevelTransition {
	var out []LevelTransition
	for _, n := range next.Levels {
		p, ok := prev.Level(n.LevelID)
		if !ok || p.Status == n.Status {
			continue
		}
		out = append(out, LevelTransition{LevelID: n.LevelID, From: p.Status, To: n.Status})
	}
	return out
}

// QuestionRow is one question of a level as seen by the learner.
type QuestionRow struct {
	ID       string         `json:"id"`
	Question string         `json:"question"`
	Topic    string         `json:"topic"`
	Done     bool           `json:"done"`
	IsNext   bool           `json:"isNext"`
	Score    *QuestionScore `json:"score,omitempty"`
}

// LevelOverview summarizes one level.
type LevelOverview struct {
	LevelID        int                   `json:"levelId"`
	Name           string                `json:"name"`
	Difficulty     curriculum.Difficulty `json:"difficulty"`
	Status         Status                `json:"status"`
	Answered       int                   `json:"answered"`
	Total          int                   `json:"total"`
	AvgScore       float64               `json:"avgScore"`
	NextQuestionID string                `json:"nextQuestionId,omitempty"`
	Questions      []QuestionRow         `json:"questions"`
}

// Overview is the read model of a whole state.
type Overview struct {
	PercentComplete float64         `json:"percentComplete"`
	CurrentLevelID  int             `json:"currentLevelId,omitempty"`
	StreakCount     int             `json:"streakCount"`
	EarnedBadges    []string        `json:"earnedBadges"`
	Levels          []LevelOverview `json:"levels"`
}

// BuildOverview derives the per-level rows and overall completion for s.
func BuildOverview(cat *curriculum.Catalog, s State) Overview {
	ov := Overview{
		StreakCount:  s.StreakCount,
		EarnedBadges: append([]string{}, s.EarnedBadges...),
	}
	if s.TotalQuestions > 0 {
		ov.PercentComplete = float64(s.TotalQuestionsCompleted) * 100 / float64(s.TotalQuestions)
	}

	for _, level := range cat.Levels() {
		lp, ok := s.Level(level.ID)
		if !ok {
			continue
		}
		if ov.CurrentLevelID == 0 && lp.Status == StatusInProgress {
			ov.CurrentLevelID = level.ID
		}

		nextID, _ := NextUnansweredQuestionID(level, lp.CompletedQuestions)
		lo := LevelOverview{
			LevelID:        level.ID,
			Name:           level.Name,
			Difficulty:     level.Difficulty,
			Status:         lp.Status,
			Answered:       len(lp.CompletedQuestions),
			Total:          len(level.Questions),
			AvgScore:       lp.AvgScore,
			NextQuestionID: nextID,
			Questions:      make([]QuestionRow, 0, len(level.Questions)),
		}
		for _, q := range level.Questions {
			row := QuestionRow{
				ID:       q.ID,
				Question: q.Question,
				Topic:    q.Topic,
				Done:     lp.IsCompleted(q.ID),
				IsNext:   q.ID == nextID,
			}
			if sc, ok := lp.ScoreFor(q.ID); ok {
				row.Score = &sc
			}
			lo.Questions = append(lo.Questions, row)
		}
		ov.Levels = append(ov.Levels, lo)
	}
	return ov
}
