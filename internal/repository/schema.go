package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the daemon-mode Postgres schema. Both repositories share one
// database; EnsureSchema is idempotent and safe to run at every startup.
const schema = `
CREATE TABLE IF NOT EXISTS lesson_progress (
    lesson_id        TEXT PRIMARY KEY,
    test_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
    test_passed      BOOLEAN NOT NULL DEFAULT FALSE,
    task_required    BOOLEAN NOT NULL DEFAULT TRUE,
    task_passed      BOOLEAN,
    completion_state TEXT NOT NULL DEFAULT 'not_started',
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
    id          TEXT PRIMARY KEY,
    cell_id     TEXT NOT NULL,
    code        TEXT NOT NULL,
    output      TEXT NOT NULL DEFAULT '',
    success     BOOLEAN NOT NULL DEFAULT FALSE,
    verdict     TEXT NOT NULL,
    details     JSONB,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_cell ON attempts(cell_id, created_at);
`

// EnsureSchema creates the daemon-mode tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure postgres schema: %w", err)
	}
	return nil
}
