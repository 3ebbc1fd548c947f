package progress

import (
	"math"
	"slices"

	"github.com/p-n-ai/interview-coach/internal/curriculum"
)

const (
	// UnlockMinAverage is the level average required to open the next level
	// from any level after the first.
	UnlockMinAverage = 6.0
	// StreakMinScore is the lowest answer average that keeps a streak alive.
	StreakMinScore = 6.0
	// StreakBadgeLength is the streak needed for the streak badge.
	StreakBadgeLength = 3
)

// LevelAverage returns the mean AverageScore of scores rounded to one
// decimal, or 0 when scores is empty. The result does not depend on order.
func LevelAverage(scores []QuestionScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	values := make([]float64, len(scores))
	for i, s := range scores {
		values[i] = s.AverageScore
	}
	slices.Sort(values)

	var sum float64
	for _, v := range values {
		sum += v
	}
	return roundTenth(sum / float64(len(values)))
}

// roundTenth rounds half up to one decimal place.
func roundTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// UnlockRule is one condition a completed level must meet before the next
// level opens.
type UnlockRule func(p LevelProgress, l curriculum.Level) bool

var unlockRules = []struct {
	name    string
	applies func(l curriculum.Level) bool
	check   UnlockRule
}{
	{"all questions answered", anyLevel, allAnswered},
	{"level average at least 6.0", afterFirstLevel, minAverage(UnlockMinAverage)},
}

func anyLevel(curriculum.Level) bool { return true }

// The first level has no quality gate.
func afterFirstLevel(l curriculum.Level) bool { return l.ID != 1 }

func allAnswered(p LevelProgress, l curriculum.Level) bool {
	return len(p.CompletedQuestions) == len(l.Questions)
}

func minAverage(threshold float64) UnlockRule {
	return func(p LevelProgress, _ curriculum.Level) bool {
		return p.AvgScore >= threshold
	}
}

// IsLevelUnlockable reports whether level, with progress p, opens the level after it.
func IsLevelUnlockable(p LevelProgress, level curriculum.Level) bool {
	if len(level.Questions) == 0 {
		return false
	}
	for _, r := range unlockRules {
		if r.applies(level) && !r.check(p, level) {
			return false
		}
	}
	return true
}

// NextUnansweredQuestionID returns the first question of level, in catalog
// order, that is not in completed.
func NextUnansweredQuestionID(level curriculum.Level, completed []string) (string, bool) {
	for _, q := range level.Questions {
		if !slices.Contains(completed, q.ID) {
			return q.ID, true
		}
	}
	return "", false
}

// BadgeRule decides whether a badge has been earned in state s.
type BadgeRule func(b curriculum.Badge, s State) bool

var badgeRules = map[curriculum.BadgeKind]BadgeRule{
	curriculum.BadgeKindLevel:  levelBadgeEarned,
	curriculum.BadgeKindStreak: streakBadgeEarned,
}

func levelBadgeEarned(b curriculum.Badge, s State) bool {
	if b.LevelID == nil {
		return false
	}
	lp, ok := s.Level(*b.LevelID)
	return ok && lp.Status == StatusCompleted && lp.AvgScore >= b.RequiredAvgScore
}

func streakBadgeEarned(_ curriculum.Badge, s State) bool {
	return s.StreakCount >= StreakBadgeLength
}

// EvaluateBadges returns the IDs of badges that s qualifies for and has not
// yet earned, in catalog order. It does not modify s.
func EvaluateBadges(cat *curriculum.Catalog, s State) []string {
	var earned []string
	for _, b := range cat.Badges() {
		if s.HasBadge(b.ID) {
			continue
		}
		rule, ok := badgeRules[b.Kind()]
		if ok && rule(b, s) {
			earned = append(earned, b.ID)
		}
	}
	return earned
}
