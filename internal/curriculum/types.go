package curriculum

import (
	"fmt"
	"strconv"
	"strings"
)

// Difficulty is the tier of a level, from 1 (Easy) to 3 (Hard).
type Difficulty int

const (
	DifficultyEasy Difficulty = iota + 1
	DifficultyMedium
	DifficultyHard
)

func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "Easy"
	case DifficultyMedium:
		return "Medium"
	case DifficultyHard:
		return "Hard"
	default:
		return "Unknown"
	}
}

// Stars renders the difficulty as one star per tier.
func (d Difficulty) Stars() string {
	if d < DifficultyEasy || d > DifficultyHard {
		return ""
	}
	return strings.Repeat("⭐", int(d))
}

func (d Difficulty) MarshalText() ([]byte, error) {
	if d < DifficultyEasy || d > DifficultyHard {
		return nil, fmt.Errorf("invalid difficulty %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts either the tier number ("1") or its label ("easy").
func (d *Difficulty) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if n, err := strconv.Atoi(s); err == nil {
		*d = Difficulty(n)
	} else {
		switch strings.ToLower(s) {
		case "easy":
			*d = DifficultyEasy
		case "medium":
			*d = DifficultyMedium
		case "hard":
			*d = DifficultyHard
		default:
			return fmt.Errorf("unknown difficulty %q", s)
		}
	}
	if *d < DifficultyEasy || *d > DifficultyHard {
		return fmt.Errorf("difficulty out of range: %s", s)
	}
	return nil
}

// Question is a single interview prompt within a level.
type Question struct {
	ID                 string   `yaml:"id" json:"id"`
	LevelID            int      `yaml:"level_id" json:"levelId"`
	Question           string   `yaml:"question" json:"question"`
	Topic              string   `yaml:"topic" json:"topic"`
	ExpectedFocusAreas []string `yaml:"expected_focus_areas" json:"expectedFocusAreas"`
}

// Level is an ordered stage of a track. Question order is significant.
type Level struct {
	ID                int        `yaml:"id" json:"id"`
	Name              string     `yaml:"name" json:"name"`
	Difficulty        Difficulty `yaml:"difficulty" json:"difficulty"`
	Description       string     `yaml:"description" json:"description"`
	UnlockRequirement string     `yaml:"unlock_requirement" json:"unlockRequirement"`
	Questions         []Question `yaml:"questions" json:"questions"`
}

// QuestionIDs returns the level's question IDs in catalog order.
func (l Level) QuestionIDs() []string {
	ids := make([]string, len(l.Questions))
	for i, q := range l.Questions {
		ids[i] = q.ID
	}
	return ids
}

// BadgeKind distinguishes per-level badges from the cross-level streak badge.
type BadgeKind string

const (
	BadgeKindLevel  BadgeKind = "level"
	BadgeKindStreak BadgeKind = "streak"
)

// Badge is an achievement definition. A badge without a level is the streak badge.
type Badge struct {
	ID               string  `yaml:"id" json:"id"`
	Name             string  `yaml:"name" json:"name"`
	Emoji            string  `yaml:"emoji" json:"emoji"`
	Description      string  `yaml:"description" json:"description"`
	LevelID          *int    `yaml:"level_id" json:"levelId"`
	RequiredAvgScore float64 `yaml:"required_avg_score" json:"requiredAvgScore"`
}

// Kind reports whether the badge is tied to a level or to the streak counter.
func (b Badge) Kind() BadgeKind {
	if b.LevelID == nil {
		return BadgeKindStreak
	}
	return BadgeKindLevel
}

// Track is the on-disk shape of a learning path.
type Track struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Levels []Level `yaml:"levels"`
	Badges []Badge `yaml:"badges"`
}

// Domain selects a practice question bank and its evaluation prompt.
type Domain string

const (
	DomainTech    Domain = "tech"
	DomainFinance Domain = "finance"
	DomainLaw     Domain = "law"
)

// ParseDomain validates a domain name.
func ParseDomain(s string) (Domain, error) {
	switch d := Domain(strings.ToLower(s)); d {
	case DomainTech, DomainFinance, DomainLaw:
		return d, nil
	default:
		return "", fmt.Errorf("unknown domain %q", s)
	}
}
