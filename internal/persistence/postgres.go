package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saaga0h/ea-advisor/pkg/postgres"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS advisor_state (
	session_id TEXT NOT NULL,
	doc_key    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (session_id, doc_key)
)`

// PostgresStore persists documents as JSONB rows keyed by session and key
type PostgresStore struct {
	db      postgres.Querier
	session string
	logger  *slog.Logger
}

// NewPostgresStore creates a store for one session
func NewPostgresStore(db postgres.Querier, session string, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:      db,
		session: session,
		logger:  logger,
	}
}

// EnsureSchema creates the state table if missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create advisor_state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM advisor_state WHERE session_id = $1 AND doc_key = $2`,
		s.session, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return payload, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO advisor_state (session_id, doc_key, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, doc_key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		s.session, key, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM advisor_state WHERE session_id = $1 AND doc_key = $2`,
		s.session, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
