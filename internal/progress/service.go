package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ip-59/teachai/internal/domain"
)

// Store persists lesson progress records. Implementations must return
// domain.ErrProgressNotFound for unknown lessons.
type Store interface {
	Get(ctx context.Context, lessonID string) (*domain.LessonProgress, error)
	Save(ctx context.Context, p *domain.LessonProgress) error
}

// Service applies completion transitions and persists after every one.
// A write failure surfaces as domain.ErrPersistence rather than being
// swallowed: the caller must know the recorded state may be stale.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a progress service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Get returns the progress record for a lesson, creating a fresh in-memory
// record for lessons never seen before. The fresh record is not persisted
// until a transition is applied to it.
func (s *Service) Get(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	p, err := s.store.Get(ctx, lessonID)
	if err != nil {
		if errors.Is(err, domain.ErrProgressNotFound) {
			return domain.NewLessonProgress(lessonID), nil
		}
		return nil, fmt.Errorf("%w: load %s: %v", domain.ErrPersistence, lessonID, err)
	}
	return p, nil
}

// ApplyTestResult records a knowledge-test score and persists the outcome.
func (s *Service) ApplyTestResult(ctx context.Context, lessonID string, score float64) (*domain.LessonProgress, error) {
	return s.transition(ctx, lessonID, "test_result", func(p *domain.LessonProgress) {
		p.RecordTest(score)
	})
}

// ApplyTaskResult records a coding-task verdict and persists the outcome.
func (s *Service) ApplyTaskResult(ctx context.Context, lessonID string, correct bool) (*domain.LessonProgress, error) {
	return s.transition(ctx, lessonID, "task_result", func(p *domain.LessonProgress) {
		p.RecordTask(correct)
	})
}

// AcknowledgeSkip marks a lesson complete because its task was not needed.
func (s *Service) AcknowledgeSkip(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	return s.transition(ctx, lessonID, "skip_acknowledged", func(p *domain.LessonProgress) {
		p.AcknowledgeSkip()
	})
}

// ForceComplete records an explicit learner override.
func (s *Service) ForceComplete(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	return s.transition(ctx, lessonID, "force_complete", func(p *domain.LessonProgress) {
		p.ForceComplete()
	})
}

// Retry resets a lesson to NotStarted while keeping its score history.
func (s *Service) Retry(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	return s.transition(ctx, lessonID, "retry", func(p *domain.LessonProgress) {
		p.Retry()
	})
}

// transition loads the record, applies fn and persists immediately. The
// returned record reflects the applied transition even when the save failed;
// the error tells the caller the stored copy is behind.
func (s *Service) transition(ctx context.Context, lessonID, name string, fn func(*domain.LessonProgress)) (*domain.LessonProgress, error) {
	p, err := s.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	before := p.State
	fn(p)

	if err := s.store.Save(ctx, p); err != nil {
		s.logger.Error("progress save failed",
			"lesson", lessonID, "transition", name, "state", p.State, "error", err)
		return p, fmt.Errorf("%w: save %s after %s: %v", domain.ErrPersistence, lessonID, name, err)
	}

	if before != p.State {
		s.logger.Info("lesson state changed",
			"lesson", lessonID, "transition", name, "from", before, "to", p.State)
	}
	return p, nil
}
