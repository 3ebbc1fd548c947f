package curriculum

import (
	"errors"
	"fmt"
)

// Catalog is the read-only view over a validated track.
type Catalog struct {
	id     string
	name   string
	levels []Level
	badges []Badge
	byID   map[int]int
}

// NewCatalog validates a track and indexes it for lookup.
func NewCatalog(t Track) (*Catalog, error) {
	for i := range t.Levels {
		for j := range t.Levels[i].Questions {
			if t.Levels[i].Questions[j].LevelID == 0 {
				t.Levels[i].Questions[j].LevelID = t.Levels[i].ID
			}
		}
	}
	if err := Validate(t); err != nil {
		return nil, err
	}

	c := &Catalog{
		id:     t.ID,
		name:   t.Name,
		levels: t.Levels,
		badges: t.Badges,
		byID:   make(map[int]int, len(t.Levels)),
	}
	for i, l := range t.Levels {
		c.byID[l.ID] = i
	}
	return c, nil
}

// Validate checks that a track is well formed: level IDs contiguous from 1,
// every level non-empty, question IDs unique across the whole track, and
// badges pointing at existing levels with at most one streak badge.
func Validate(t Track) error {
	if len(t.Levels) == 0 {
		return errors.New("track has no levels")
	}

	var errs []error
	questionIDs := make(map[string]int)
	for i, l := range t.Levels {
		if l.ID != i+1 {
			errs = append(errs, fmt.Errorf("level at position %d has id %d, want %d", i, l.ID, i+1))
		}
		if len(l.Questions) == 0 {
			errs = append(errs, fmt.Errorf("level %d has no questions", l.ID))
		}
		for _, q := range l.Questions {
			if q.ID == "" {
				errs = append(errs, fmt.Errorf("level %d has a question without id", l.ID))
				continue
			}
			if q.LevelID != l.ID {
				errs = append(errs, fmt.Errorf("question %s has level_id %d inside level %d", q.ID, q.LevelID, l.ID))
			}
			if prev, dup := questionIDs[q.ID]; dup {
				errs = append(errs, fmt.Errorf("question id %s used in level %d and level %d", q.ID, prev, l.ID))
				continue
			}
			questionIDs[q.ID] = l.ID
		}
	}

	badgeIDs := make(map[string]bool)
	streakBadges := 0
	for _, b := range t.Badges {
		if b.ID == "" {
			errs = append(errs, errors.New("badge without id"))
			continue
		}
		if badgeIDs[b.ID] {
			errs = append(errs, fmt.Errorf("duplicate badge id %s", b.ID))
		}
		badgeIDs[b.ID] = true

		if b.Kind() == BadgeKindStreak {
			streakBadges++
			continue
		}
		if *b.LevelID < 1 || *b.LevelID > len(t.Levels) {
			errs = append(errs, fmt.Errorf("badge %s refers to unknown level %d", b.ID, *b.LevelID))
		}
	}
	if streakBadges > 1 {
		errs = append(errs, fmt.Errorf("track has %d badges without a level, at most one allowed", streakBadges))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid track %q: %w", t.ID, errors.Join(errs...))
	}
	return nil
}

// ID returns the track identifier.
func (c *Catalog) ID() string { return c.id }

// Name returns the track display name.
func (c *Catalog) Name() string { return c.name }

// Levels returns the levels ordered by id.
func (c *Catalog) Levels() []Level {
	return c.levels
}

// Badges returns every badge definition.
func (c *Catalog) Badges() []Badge {
	return c.badges
}

// LevelByID returns a level by ID.
func (c *Catalog) LevelByID(id int) (Level, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Level{}, false
	}
	return c.levels[i], true
}

// QuestionByID returns a question only if it belongs to the given level.
func (c *Catalog) QuestionByID(levelID int, questionID string) (Question, bool) {
	l, ok := c.LevelByID(levelID)
	if !ok {
		return Question{}, false
	}
	for _, q := range l.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return Question{}, false
}

// BadgeByID returns a badge definition by ID.
func (c *Catalog) BadgeByID(id string) (Badge, bool) {
	for _, b := range c.badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// TotalQuestions is the number of questions across all levels.
func (c *Catalog) TotalQuestions() int {
	n := 0
	for _, l := range c.levels {
		n += len(l.Questions)
	}
	return n
}
