package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/domain"
)

// AttemptStore implements the append-only attempt log backed by SQLite.
type AttemptStore struct {
	db *DB
}

// NewAttemptStore creates a new SQLite-backed attempt store.
func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Insert appends an attempt. Attempt IDs are unique; re-inserting the same
// ID is an error, not an upsert.
func (s *AttemptStore) Insert(ctx context.Context, a *attemptlog.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, cell_id, code, output, success, verdict, details, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CellID, a.Code, a.Output, a.Success, a.Verdict,
		nullJSON(a.Details), a.Duration.Milliseconds(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID.
func (s *AttemptStore) Get(ctx context.Context, id string) (*attemptlog.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, cell_id, code, output, success, verdict, details, duration_ms, created_at
		FROM attempts WHERE id = ?`, id)

	a, err := scanAttempt(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns all attempts for a cell in submission order.
func (s *AttemptStore) List(ctx context.Context, cellID string) ([]*attemptlog.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cell_id, code, output, success, verdict, details, duration_ms, created_at
		FROM attempts WHERE cell_id = ? ORDER BY created_at, id`, cellID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*attemptlog.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// scanAttempt reads one attempt from a row scan function.
func scanAttempt(scan func(...any) error) (*attemptlog.Attempt, error) {
	var a attemptlog.Attempt
	var details sql.NullString
	var durationMs int64

	err := scan(&a.ID, &a.CellID, &a.Code, &a.Output, &a.Success,
		&a.Verdict, &details, &durationMs, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}

	if details.Valid {
		a.Details = []byte(details.String)
	}
	a.Duration = time.Duration(durationMs) * time.Millisecond
	return &a, nil
}

// nullJSON converts a raw JSON value to a nullable TEXT column value.
func nullJSON(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
