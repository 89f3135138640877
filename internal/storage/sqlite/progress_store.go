package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Ip-59/teachai/internal/domain"
)

// ProgressStore implements lesson-progress persistence backed by SQLite.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a new SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Save persists a progress record (insert or update, last writer wins).
func (s *ProgressStore) Save(ctx context.Context, p *domain.LessonProgress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_progress (lesson_id, test_score, test_passed,
			task_required, task_passed, completion_state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(lesson_id) DO UPDATE SET
			test_score=excluded.test_score, test_passed=excluded.test_passed,
			task_required=excluded.task_required, task_passed=excluded.task_passed,
			completion_state=excluded.completion_state, updated_at=excluded.updated_at`,
		p.LessonID, p.TestScore, p.TestPassed,
		p.TaskRequired, nullBool(p.TaskPassed), string(p.State), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert lesson progress: %w", err)
	}
	return nil
}

// Get retrieves the progress record for a lesson.
func (s *ProgressStore) Get(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT lesson_id, test_score, test_passed, task_required, task_passed,
			completion_state, updated_at
		FROM lesson_progress WHERE lesson_id = ?`, lessonID)

	var p domain.LessonProgress
	var taskPassed sql.NullBool
	var state string

	err := row.Scan(&p.LessonID, &p.TestScore, &p.TestPassed,
		&p.TaskRequired, &taskPassed, &state, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("scan lesson progress: %w", err)
	}

	p.State = domain.CompletionState(state)
	if taskPassed.Valid {
		p.TaskPassed = &taskPassed.Bool
	}
	return &p, nil
}

// List returns all lesson IDs with recorded progress, most recent first.
func (s *ProgressStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
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
func (s *ProgressStore) Delete(ctx context.Context, lessonID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM lesson_progress WHERE lesson_id = ?", lessonID)
	if err != nil {
		return fmt.Errorf("delete lesson progress: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrProgressNotFound
	}
	return nil
}

// nullBool converts a *bool to sql.NullBool for storage.
func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
