// Package service is the application facade: it wires task generation,
// sandbox grading, the attempt log and the completion state machine into the
// operations the external surfaces expose.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/checker"
	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/progress"
	"github.com/Ip-59/teachai/internal/queue"
	"github.com/Ip-59/teachai/internal/sandbox"
	"github.com/Ip-59/teachai/internal/taskgen"
)

// TaskGenerator produces a task for a lesson. Generation is total: failures
// degrade to fallback or placeholder tasks instead of errors.
type TaskGenerator interface {
	Generate(ctx context.Context, req taskgen.GenerateRequest) *domain.Task
}

// EventPublisher publishes grading outcomes for analytics consumers.
type EventPublisher interface {
	PublishAttempt(ctx context.Context, event *queue.AttemptEvent) error
}

// Service exposes the assistant's operations.
type Service struct {
	generator TaskGenerator
	executor  sandbox.Executor
	progress  *progress.Service
	attempts  *attemptlog.Service
	publisher EventPublisher // optional
	flight    *progress.Flight
	logger    *slog.Logger
}

// New creates the facade. publisher may be nil when no broker is configured.
func New(generator TaskGenerator, executor sandbox.Executor, prog *progress.Service, attempts *attemptlog.Service, publisher EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator: generator,
		executor:  executor,
		progress:  prog,
		attempts:  attempts,
		publisher: publisher,
		flight:    progress.NewFlight(),
		logger:    logger,
	}
}

// GenerateTask produces a task for the lesson. Never returns an error: the
// generator degrades to a fallback template or a placeholder skip task.
func (s *Service) GenerateTask(ctx context.Context, req taskgen.GenerateRequest) *domain.Task {
	return s.generator.Generate(ctx, req)
}

// CheckRequest identifies one grading request.
type CheckRequest struct {
	LessonID     string
	CellID       string
	SubmissionID string
	Code         string
	Task         *domain.Task
}

// CheckResponse carries the grading outcome and the progress record it
// produced.
type CheckResponse struct {
	Result    domain.ValidationResult
	Progress  *domain.LessonProgress
	AttemptID string
}

// CheckSubmission grades a learner submission end to end: sandbox run,
// result check, attempt log, completion transition, event publish. A second
// request for the same (lesson, submission) while one is running is rejected
// with domain.ErrCheckInFlight.
func (s *Service) CheckSubmission(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	release, err := s.flight.Begin(req.LessonID, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	exec, err := s.executor.Execute(ctx, req.Code)
	if err != nil {
		// Sandbox infrastructure failure, distinct from learner code failing.
		return nil, fmt.Errorf("execute submission: %w", err)
	}
	duration := time.Since(start)

	result := checker.Check(exec, req.Task)

	attempt, err := s.attempts.Record(ctx, req.CellID, req.Code, result, duration)
	if err != nil {
		return nil, err
	}

	prog, err := s.progress.ApplyTaskResult(ctx, req.LessonID, result.IsCorrect)
	if err != nil {
		return nil, err
	}

	s.publishAttempt(ctx, req.LessonID, attempt)

	return &CheckResponse{
		Result:    result,
		Progress:  prog,
		AttemptID: attempt.ID,
	}, nil
}

// publishAttempt emits an event for the attempt. Publish failures are logged
// and swallowed: analytics lag must never block grading.
func (s *Service) publishAttempt(ctx context.Context, lessonID string, attempt *attemptlog.Attempt) {
	if s.publisher == nil {
		return
	}
	event := &queue.AttemptEvent{
		AttemptID: attempt.ID,
		LessonID:  lessonID,
		CellID:    attempt.CellID,
		Verdict:   attempt.Verdict,
		Success:   attempt.Success,
		Duration:  attempt.Duration,
	}
	if err := s.publisher.PublishAttempt(ctx, event); err != nil {
		s.logger.Warn("attempt event publish failed",
			"attempt", attempt.ID, "lesson", lessonID, "error", err)
	}
}

// ApplyTestResult records a knowledge-test score for a lesson.
func (s *Service) ApplyTestResult(ctx context.Context, lessonID string, score float64) (*domain.LessonProgress, error) {
	return s.progress.ApplyTestResult(ctx, lessonID, score)
}

// ApplyTaskResult records a coding-task verdict arriving from outside the
// grading path (a manually reviewed submission, for instance).
func (s *Service) ApplyTaskResult(ctx context.Context, lessonID string, correct bool) (*domain.LessonProgress, error) {
	return s.progress.ApplyTaskResult(ctx, lessonID, correct)
}

// AcknowledgeSkip marks a lesson complete because its task was not needed.
func (s *Service) AcknowledgeSkip(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	return s.progress.AcknowledgeSkip(ctx, lessonID)
}

// ForceComplete records an explicit learner override for a lesson.
func (s *Service) ForceComplete(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	return s.progress.ForceComplete(ctx, lessonID)
}

// RetryLesson resets a lesson to NotStarted, keeping score history.
func (s *Service) RetryLesson(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	return s.progress.Retry(ctx, lessonID)
}

// GetProgress returns the progress record for a lesson.
func (s *Service) GetProgress(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	return s.progress.Get(ctx, lessonID)
}

// GetAttemptStats returns attempt aggregates for a task cell.
func (s *Service) GetAttemptStats(ctx context.Context, cellID string) (*attemptlog.Stats, error) {
	return s.attempts.GetStats(ctx, cellID)
}

// IsCellCompleted reports whether any attempt for the cell succeeded.
func (s *Service) IsCellCompleted(ctx context.Context, cellID string) (bool, error) {
	return s.attempts.IsCompleted(ctx, cellID)
}
