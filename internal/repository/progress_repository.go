// Package repository provides the Postgres persistence layer used in daemon
// mode, implementing the same store interfaces as the local SQLite layer.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/progress"
)

// ProgressRepository implements progress.Store using PostgreSQL.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new PostgreSQL progress repository.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

var _ progress.Store = (*ProgressRepository)(nil)

// Save persists a progress record (create or update, last writer wins).
func (r *ProgressRepository) Save(ctx context.Context, p *domain.LessonProgress) error {
	query := `
		INSERT INTO lesson_progress (lesson_id, test_score, test_passed,
			task_required, task_passed, completion_state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lesson_id) DO UPDATE SET
			test_score = EXCLUDED.test_score,
			test_passed = EXCLUDED.test_passed,
			task_required = EXCLUDED.task_required,
			task_passed = EXCLUDED.task_passed,
			completion_state = EXCLUDED.completion_state,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		p.LessonID, p.TestScore, p.TestPassed,
		p.TaskRequired, p.TaskPassed, string(p.State), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert lesson progress: %w", err)
	}
	return nil
}

// Get retrieves the progress record for a lesson.
func (r *ProgressRepository) Get(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	query := `
		SELECT lesson_id, test_score, test_passed, task_required, task_passed,
			completion_state, updated_at
		FROM lesson_progress WHERE lesson_id = $1
	`
	var p domain.LessonProgress
	var state string
	err := r.pool.QueryRow(ctx, query, lessonID).Scan(
		&p.LessonID, &p.TestScore, &p.TestPassed,
		&p.TaskRequired, &p.TaskPassed, &state, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson progress: %w", err)
	}
	p.State = domain.CompletionState(state)
	return &p, nil
}

// List returns all lesson IDs with recorded progress, most recent first.
func (r *ProgressRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT lesson_id FROM lesson_progress ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lesson id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a progress record.
func (r *ProgressRepository) Delete(ctx context.Context, lessonID string) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM lesson_progress WHERE lesson_id = $1", lessonID)
	if err != nil {
		return fmt.Errorf("delete lesson progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProgressNotFound
	}
	return nil
}
