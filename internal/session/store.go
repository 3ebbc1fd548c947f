// Package session owns the lifecycle of learning path sessions: it keeps one
// progress state per session, serializes score recording per session, and
// persists state through a pluggable Store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/p-n-ai/interview-coach/internal/progress"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrLevelNotFound    = errors.New("level not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrLevelLocked      = errors.New("level is locked")
	ErrConflict         = errors.New("session was modified concurrently")
)

// Session is one learner's run through the track.
type Session struct {
	ID        string         `json:"id"`
	State     progress.State `json:"state"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	// Version counts successful saves.
	Version int64 `json:"version"`
}

// Store persists sessions. Get, Save and Delete return an error wrapping
// ErrSessionNotFound for unknown ids.
//
// Save is a compare-and-swap: it succeeds only while the stored Version
// still equals s.Version and then stores s.Version+1. Otherwise it returns
// an error wrapping ErrConflict.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func conflict(id string) error {
	return fmt.Errorf("%w: %s", ErrConflict, id)
}

// MemoryStore is an in-memory Store. Sessions are deep-copied on the way in
// and out so callers never share slices with the store.
type MemoryStore struct {
	sessions map[string]Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
	}
}

func (m *MemoryStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.ID)
	}
	s.State = s.State.Clone()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, notFound(id)
	}
	s.State = s.State.Clone()
	return s, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[s.ID]
	if !ok {
		return notFound(s.ID)
	}
	if cur.Version != s.Version {
		return conflict(s.ID)
	}
	s.State = s.State.Clone()
	s.Version++
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return notFound(id)
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
