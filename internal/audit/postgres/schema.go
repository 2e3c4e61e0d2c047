package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlDetailed = `
CREATE TABLE IF NOT EXISTS audit_detailed (
    id           BIGSERIAL    PRIMARY KEY,
    user_id      TEXT         NOT NULL,
    user_name    TEXT         NOT NULL DEFAULT '',
    channel_id   TEXT         NOT NULL DEFAULT '',
    channel_name TEXT         NOT NULL DEFAULT '',
    guild_id     TEXT         NOT NULL DEFAULT '',
    guild_name   TEXT         NOT NULL DEFAULT '',
    command      TEXT         NOT NULL,
    invocation   TEXT         NOT NULL DEFAULT '',
    valid        BOOLEAN      NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    expires_at   TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_detailed_user_id
    ON audit_detailed (user_id);

CREATE INDEX IF NOT EXISTS idx_audit_detailed_expires_at
    ON audit_detailed (expires_at);
`

const ddlAnonymous = `
CREATE TABLE IF NOT EXISTS audit_anonymous (
    id          BIGSERIAL    PRIMARY KEY,
    command     TEXT         NOT NULL,
    invocation  TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_anonymous_command
    ON audit_anonymous (command);
`

// Migrate creates the audit tables and their indexes if they do not exist.
// It is idempotent and safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlDetailed, ddlAnonymous} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("audit migrate: %w", err)
		}
	}
	return nil
}
