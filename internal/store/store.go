// Package store implements Postgres persistence for users, channels, and
// messages on top of a pgx connection pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const pingTimeout = 10 * time.Second

// Store wraps a pgx pool with the query surface the rest of the service
// consumes.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open parses the DSN, establishes the connection pool, and verifies
// connectivity with a ping.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgres DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("error creating postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging postgres: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.With().Str("component", "store").Logger(),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// A message references exactly one of channel_id/receiver_id, enforced by
// the CHECK constraint.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             BIGSERIAL PRIMARY KEY,
	username       TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_active_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS channels (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	is_private  BOOLEAN NOT NULL DEFAULT FALSE,
	created_by  BIGINT NOT NULL REFERENCES users (id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id BIGINT NOT NULL REFERENCES channels (id) ON DELETE CASCADE,
	user_id    BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          BIGSERIAL PRIMARY KEY,
	sender_id   BIGINT NOT NULL REFERENCES users (id),
	channel_id  BIGINT REFERENCES channels (id) ON DELETE CASCADE,
	receiver_id BIGINT REFERENCES users (id),
	content     TEXT NOT NULL,
	sent_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((channel_id IS NULL) <> (receiver_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages (channel_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages (sender_id, receiver_id, sent_at);
`

// Migrate creates the database schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	s.log.Debug().Msg("database schema ensured")
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports whether err is a Postgres foreign key
// constraint violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// isNoRows reports whether err is the pgx empty-result sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
