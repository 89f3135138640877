package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sqlc-dev/pqtype"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/domain"
)

// AttemptRepository implements attemptlog.Store using PostgreSQL through
// database/sql (lib/pq driver). The details column is JSONB so analytics
// queries can reach into grading results directly.
type AttemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new attempt repository.
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

var _ attemptlog.Store = (*AttemptRepository)(nil)

// Insert appends an attempt to the log.
func (r *AttemptRepository) Insert(ctx context.Context, a *attemptlog.Attempt) error {
	query := `
		INSERT INTO attempts (id, cell_id, code, output, success, verdict, details, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	details := pqtype.NullRawMessage{RawMessage: a.Details, Valid: len(a.Details) > 0}
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.CellID, a.Code, a.Output, a.Success, a.Verdict,
		details, a.Duration.Milliseconds(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID.
func (r *AttemptRepository) Get(ctx context.Context, id string) (*attemptlog.Attempt, error) {
	query := `
		SELECT id, cell_id, code, output, success, verdict, details, duration_ms, created_at
		FROM attempts WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	a, err := scanAttemptRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	return a, err
}

// List returns all attempts for a cell in submission order.
func (r *AttemptRepository) List(ctx context.Context, cellID string) ([]*attemptlog.Attempt, error) {
	query := `
		SELECT id, cell_id, code, output, success, verdict, details, duration_ms, created_at
		FROM attempts WHERE cell_id = $1 ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, cellID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*attemptlog.Attempt
	for rows.Next() {
		a, err := scanAttemptRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// scanAttemptRow reads one attempt from a row scan function.
func scanAttemptRow(scan func(...any) error) (*attemptlog.Attempt, error) {
	var a attemptlog.Attempt
	var details pqtype.NullRawMessage
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
		a.Details = details.RawMessage
	}
	a.Duration = time.Duration(durationMs) * time.Millisecond
	return &a, nil
}
