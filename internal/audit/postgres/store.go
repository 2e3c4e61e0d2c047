// Package postgres provides a PostgreSQL-backed implementation of
// [audit.Store].
//
// Both event twins live in one database: audit_detailed carries full identity
// plus an expires_at column, audit_anonymous has no identity and no TTL.
// Expired detailed rows are swept opportunistically on each insert.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	recorder := audit.NewRecorder(store, ttl)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oratorbot/orator/internal/audit"
)

var _ audit.Store = (*Store)(nil)

// Store is the PostgreSQL-backed audit store. It holds a single
// [pgxpool.Pool]; all methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure both audit tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Insert implements [audit.Store]. Both twins are written in one transaction;
// expired detailed rows are swept in the same round trip.
func (s *Store) Insert(ctx context.Context, detailed audit.DetailedEvent, anonymous audit.AnonymousEvent) error {
	const qDetailed = `
		INSERT INTO audit_detailed
		    (user_id, user_name, channel_id, channel_name, guild_id, guild_name,
		     command, invocation, valid, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	const qAnonymous = `
		INSERT INTO audit_anonymous (command, invocation)
		VALUES ($1, $2)`

	const qSweep = `DELETE FROM audit_detailed WHERE expires_at <= now()`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, qDetailed,
		detailed.UserID,
		detailed.UserName,
		detailed.ChannelID,
		detailed.ChannelName,
		detailed.GuildID,
		detailed.GuildName,
		detailed.Command,
		detailed.Invocation,
		detailed.Valid,
		detailed.CreatedAt,
		detailed.ExpiresAt,
	); err != nil {
		return fmt.Errorf("audit store: insert detailed: %w", err)
	}

	if _, err := tx.Exec(ctx, qAnonymous, anonymous.Command, anonymous.Invocation); err != nil {
		return fmt.Errorf("audit store: insert anonymous: %w", err)
	}

	if _, err := tx.Exec(ctx, qSweep); err != nil {
		return fmt.Errorf("audit store: sweep expired: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("audit store: commit: %w", err)
	}
	return nil
}

// Keys implements [audit.Store]. It returns the primary keys of every
// non-expired detailed row belonging to any of userIDs.
func (s *Store) Keys(ctx context.Context, userIDs []string) ([]audit.Key, error) {
	const q = `
		SELECT id
		FROM   audit_detailed
		WHERE  user_id = ANY($1)`

	rows, err := s.pool.Query(ctx, q, userIDs)
	if err != nil {
		return nil, fmt.Errorf("audit store: scan keys: %w", err)
	}
	defer rows.Close()

	keys, err := pgx.CollectRows(rows, pgx.RowTo[audit.Key])
	if err != nil {
		return nil, fmt.Errorf("audit store: collect keys: %w", err)
	}
	return keys, nil
}

// Delete implements [audit.Store]. It removes the detailed rows identified by
// keys in a single statement.
func (s *Store) Delete(ctx context.Context, keys []audit.Key) error {
	const q = `DELETE FROM audit_detailed WHERE id = ANY($1)`

	ids := make([]int64, len(keys))
	for i, k := range keys {
		ids[i] = int64(k)
	}
	if _, err := s.pool.Exec(ctx, q, ids); err != nil {
		return fmt.Errorf("audit store: delete: %w", err)
	}
	return nil
}

// Ping checks database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("audit store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
