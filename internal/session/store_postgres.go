package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Schema creates the tables used by PostgresStore and PostgresEventLogger.
// Events are kept after their session is deleted.
const Schema = `
CREATE TABLE IF NOT EXISTS coach_sessions (
	id         uuid PRIMARY KEY,
	state      jsonb NOT NULL,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL,
	version    bigint NOT NULL DEFAULT 0
);

ALTER TABLE coach_sessions ADD COLUMN IF NOT EXISTS version bigint NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS coach_events (
	id         bigserial PRIMARY KEY,
	session_id uuid NOT NULL,
	event_type text NOT NULL,
	data       jsonb NOT NULL DEFAULT '{}'::jsonb,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS coach_events_session_idx ON coach_events (session_id, created_at);
`

// EnsureSchema applies Schema. It is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PostgresStore is a PostgreSQL-backed Store. State is stored as jsonb.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, sess Session) error {
	if _, err := uuid.Parse(sess.ID); err != nil {
		return fmt.Errorf("invalid session id %q: %w", sess.ID, err)
	}
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO coach_sessions (id, state, created_at, updated_at, version)
		 VALUES ($1::uuid, $2::jsonb, $3, $4, $5)`,
		sess.ID,
		string(state),
		sess.CreatedAt,
		sess.UpdatedAt,
		sess.Version,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrSessionExists, sess.ID)
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, notFound(id)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var sess Session
	var state []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, state, created_at, updated_at, version
		 FROM coach_sessions
		 WHERE id = $1::uuid`,
		id,
	).Scan(&sess.ID, &state, &sess.CreatedAt, &sess.UpdatedAt, &sess.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, notFound(id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal(state, &sess.State); err != nil {
		return Session{}, fmt.Errorf("unmarshal state for %s: %w", id, err)
	}
	return sess, nil
}

func (s *PostgresStore) Save(ctx context.Context, sess Session) error {
	if _, err := uuid.Parse(sess.ID); err != nil {
		return notFound(sess.ID)
	}
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE coach_sessions
		 SET state = $2::jsonb, updated_at = $3, version = version + 1
		 WHERE id = $1::uuid AND version = $4`,
		sess.ID,
		string(state),
		sess.UpdatedAt,
		sess.Version,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coach_sessions WHERE id = $1::uuid)`,
		sess.ID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !exists {
		return notFound(sess.ID)
	}
	return conflict(sess.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(id)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM coach_sessions WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}
