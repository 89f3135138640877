package attemptlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ip-59/teachai/internal/domain"
)

// Attempt is one graded submission for a task cell.
type Attempt struct {
	ID      string `json:"id"`
	CellID  string `json:"cell_id"`
	Code    string `json:"code"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
	Verdict string `json:"verdict"`
	// Details carries the full grading result as JSON when the plain columns
	// cannot represent it (variable-state grading, runtime errors). Nil for
	// ordinary output-mode attempts.
	Details   json.RawMessage `json:"details,omitempty"`
	Duration  time.Duration   `json:"duration"`
	CreatedAt time.Time       `json:"created_at"`
}

// Stats aggregates the attempt history of one cell.
type Stats struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	FirstAt   *time.Time `json:"first_at,omitempty"`
	LastAt    *time.Time `json:"last_at,omitempty"`
}

// Store persists attempts. List returns attempts in submission order.
type Store interface {
	Insert(ctx context.Context, a *Attempt) error
	List(ctx context.Context, cellID string) ([]*Attempt, error)
}

// Service records grading outcomes per task cell and answers history
// queries. The log is append-only; a later failure never erases an earlier
// success.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an attempt log service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Record appends an attempt for the cell and returns the stored record.
func (s *Service) Record(ctx context.Context, cellID, code string, result domain.ValidationResult, duration time.Duration) (*Attempt, error) {
	verdict := "incorrect"
	switch {
	case result.IsCorrect:
		verdict = "correct"
	case result.ErrorMessage != "":
		verdict = "error"
	}

	a := &Attempt{
		ID:        uuid.NewString(),
		CellID:    cellID,
		Code:      code,
		Output:    result.ActualOutput,
		Success:   result.IsCorrect,
		Verdict:   verdict,
		Duration:  duration,
		CreatedAt: time.Now(),
	}
	if result.ActualVariable != nil || result.ErrorMessage != "" {
		details, err := json.Marshal(result)
		if err == nil {
			a.Details = details
		}
	}

	if err := s.store.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: record attempt for %s: %v", domain.ErrPersistence, cellID, err)
	}

	s.logger.Info("attempt recorded",
		"cell", cellID, "attempt", a.ID, "verdict", verdict, "duration", duration)
	return a, nil
}

// GetStats returns aggregate counts for a cell. A cell with no attempts
// yields zero counts, not an error.
func (s *Service) GetStats(ctx context.Context, cellID string) (*Stats, error) {
	attempts, err := s.store.List(ctx, cellID)
	if err != nil {
		return nil, fmt.Errorf("%w: list attempts for %s: %v", domain.ErrPersistence, cellID, err)
	}

	stats := &Stats{Total: len(attempts)}
	for _, a := range attempts {
		if a.Success {
			stats.Succeeded++
		}
	}
	if len(attempts) > 0 {
		first := attempts[0].CreatedAt
		last := attempts[len(attempts)-1].CreatedAt
		stats.FirstAt = &first
		stats.LastAt = &last
	}
	return stats, nil
}

// IsCompleted reports whether any attempt for the cell succeeded.
func (s *Service) IsCompleted(ctx context.Context, cellID string) (bool, error) {
	attempts, err := s.store.List(ctx, cellID)
	if err != nil {
		return false, fmt.Errorf("%w: list attempts for %s: %v", domain.ErrPersistence, cellID, err)
	}
	for _, a := range attempts {
		if a.Success {
			return true, nil
		}
	}
	return false, nil
}
