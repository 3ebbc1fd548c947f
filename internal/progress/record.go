package progress

import (
	"github.com/p-n-ai/interview-coach/internal/curriculum"
)

// RecordScore applies one scoring result to s and returns the new state with
// the badge IDs earned by this transition. s itself is left untouched.
//
// Unknown level or question IDs leave the state unchanged and earn nothing.
// The next level is only considered for unlocking at the moment levelID
// flips to completed; later scores on a completed level never unlock it.
func RecordScore(cat *curriculum.Catalog, s State, levelID int, questionID string, score Score) (State, []string) {
	level, ok := cat.LevelByID(levelID)
	if !ok {
		return s, nil
	}
	if _, ok := cat.QuestionByID(levelID, questionID); !ok {
		return s, nil
	}
	if _, ok := s.Level(levelID); !ok {
		return s, nil
	}

	next := s.Clone()
	lp := next.level(levelID)
	wasCompleted := lp.Status == StatusCompleted

	entry := QuestionScore{QuestionID: questionID, Score: score}
	replaced := false
	for i := range lp.Scores {
		if lp.Scores[i].QuestionID == questionID {
			lp.Scores[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lp.Scores = append(lp.Scores, entry)
	}

	if !lp.IsCompleted(questionID) {
		lp.CompletedQuestions = append(lp.CompletedQuestions, questionID)
	}

	lp.AvgScore = LevelAverage(lp.Scores)

	if len(lp.CompletedQuestions) == len(level.Questions) {
		lp.Status = StatusCompleted
	} else {
		lp.Status = StatusInProgress
	}

	if !wasCompleted && lp.Status == StatusCompleted && IsLevelUnlockable(*lp, level) {
		if nl := next.level(levelID + 1); nl != nil && nl.Status == StatusLocked {
			nl.Status = StatusInProgress
		}
	}

	next.recountCompleted()

	if score.AverageScore >= StreakMinScore {
		next.StreakCount++
	} else {
		next.StreakCount = 0
	}

	earned := EvaluateBadges(cat, next)
	next.EarnedBadges = append(next.EarnedBadges, earned...)

	return next, earned
}
