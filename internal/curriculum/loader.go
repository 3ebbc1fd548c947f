// Package curriculum loads the learning track and practice question banks.
package curriculum

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content/*.yaml
var defaultContent embed.FS

// Loader loads curriculum content from a filesystem.
// Files ending in .track.yaml hold the learning path, .bank.yaml files hold
// practice questions keyed by domain.
type Loader struct {
	catalog *Catalog
	banks   map[Domain][]string
}

// NewLoader loads content from rootDir, or the embedded default track when rootDir is empty.
func NewLoader(rootDir string) (*Loader, error) {
	if rootDir == "" {
		sub, err := fs.Sub(defaultContent, "content")
		if err != nil {
			return nil, fmt.Errorf("opening embedded curriculum: %w", err)
		}
		return NewLoaderFS(sub)
	}
	return NewLoaderFS(os.DirFS(rootDir))
}

// NewLoaderFS loads and validates content from fsys.
func NewLoaderFS(fsys fs.FS) (*Loader, error) {
	l := &Loader{banks: make(map[Domain][]string)}

	if err := l.loadAll(fsys); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	if l.catalog == nil {
		return nil, fmt.Errorf("loading curriculum: no .track.yaml file found")
	}

	slog.Info("curriculum loaded",
		"track", l.catalog.ID(),
		"levels", len(l.catalog.Levels()),
		"questions", l.catalog.TotalQuestions(),
		"badges", len(l.catalog.Badges()),
		"banks", len(l.banks),
	)
	return l, nil
}

// Catalog returns the loaded learning track.
func (l *Loader) Catalog() *Catalog {
	return l.catalog
}

// Bank returns the practice questions for a domain.
func (l *Loader) Bank(d Domain) ([]string, bool) {
	qs, ok := l.banks[d]
	return qs, ok && len(qs) > 0
}

// RandomQuestion picks a practice question from the domain's bank.
func (l *Loader) RandomQuestion(d Domain) (string, bool) {
	qs, ok := l.Bank(d)
	if !ok {
		return "", false
	}
	return qs[rand.IntN(len(qs))], true
}

func (l *Loader) loadAll(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case strings.HasSuffix(path, ".track.yaml"):
			return l.loadTrack(fsys, path)
		case strings.HasSuffix(path, ".bank.yaml"):
			return l.loadBank(fsys, path)
		}
		return nil // Not curriculum content
	})
}

func (l *Loader) loadTrack(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}

	var track Track
	if err := yaml.Unmarshal(data, &track); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if l.catalog != nil {
		return fmt.Errorf("%s: track %q already loaded, only one track is supported", path, l.catalog.ID())
	}

	cat, err := NewCatalog(track)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	l.catalog = cat
	return nil
}

func (l *Loader) loadBank(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("skipping invalid question bank", "path", path, "error", err)
		return nil
	}

	for name, questions := range raw {
		d, err := ParseDomain(name)
		if err != nil {
			slog.Warn("skipping unknown bank domain", "path", path, "domain", name)
			continue
		}
		l.banks[d] = append(l.banks[d], questions...)
	}
	return nil
}
