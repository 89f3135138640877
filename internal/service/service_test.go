package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/progress"
	"github.com/Ip-59/teachai/internal/queue"
	"github.com/Ip-59/teachai/internal/sandbox"
	"github.com/Ip-59/teachai/internal/taskgen"
)

// fakeGenerator returns a canned task.
type fakeGenerator struct {
	task *domain.Task
}

func (f *fakeGenerator) Generate(ctx context.Context, req taskgen.GenerateRequest) *domain.Task {
	return f.task
}

// fakeExecutor returns a scripted result, optionally blocking until released.
type fakeExecutor struct {
	result  *sandbox.ExecResult
	err     error
	started chan struct{} // closed-ish signal per Execute call, may be nil
	gate    chan struct{} // Execute blocks on this when set
}

func (f *fakeExecutor) Execute(ctx context.Context, code string) (*sandbox.ExecResult, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// memProgressStore is an in-memory progress.Store.
type memProgressStore struct {
	mu      sync.Mutex
	records map[string]*domain.LessonProgress
	saveErr error
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{records: make(map[string]*domain.LessonProgress)}
}

func (m *memProgressStore) Get(ctx context.Context, lessonID string) (*domain.LessonProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[lessonID]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProgressStore) Save(ctx context.Context, p *domain.LessonProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *p
	m.records[p.LessonID] = &cp
	return nil
}

// memAttemptStore is an in-memory attemptlog.Store.
type memAttemptStore struct {
	mu       sync.Mutex
	attempts []*attemptlog.Attempt
}

func (m *memAttemptStore) Insert(ctx context.Context, a *attemptlog.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memAttemptStore) List(ctx context.Context, cellID string) ([]*attemptlog.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attemptlog.Attempt
	for _, a := range m.attempts {
		if a.CellID == cellID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakePublisher captures published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []*queue.AttemptEvent
	err    error
}

func (f *fakePublisher) PublishAttempt(ctx context.Context, event *queue.AttemptEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type harness struct {
	svc       *Service
	executor  *fakeExecutor
	progStore *memProgressStore
	attStore  *memAttemptStore
	publisher *fakePublisher
}

func newHarness(t *testing.T, executor *fakeExecutor) *harness {
	t.Helper()
	progStore := newMemProgressStore()
	attStore := &memAttemptStore{}
	publisher := &fakePublisher{}
	svc := New(
		&fakeGenerator{task: &domain.Task{Title: "t", IsNeeded: true, ExpectedOutput: "1"}},
		executor,
		progress.NewService(progStore, nil),
		attemptlog.NewService(attStore, nil),
		publisher,
		nil,
	)
	return &harness{svc: svc, executor: executor, progStore: progStore, attStore: attStore, publisher: publisher}
}

func outputTask(expected string) *domain.Task {
	return &domain.Task{
		Title:          "Count",
		ExpectedOutput: expected,
		SolutionCode:   "print(1)",
		IsNeeded:       true,
	}
}

func TestCheckSubmission_CorrectCompletesLesson(t *testing.T) {
	h := newHarness(t, &fakeExecutor{result: &sandbox.ExecResult{Stdout: "42\n"}})
	ctx := context.Background()

	if _, err := h.svc.ApplyTestResult(ctx, "l1", 80); err != nil {
		t.Fatalf("ApplyTestResult() error = %v", err)
	}

	resp, err := h.svc.CheckSubmission(ctx, CheckRequest{
		LessonID:     "l1",
		CellID:       "cell-1",
		SubmissionID: "sub-1",
		Code:         "print(42)",
		Task:         outputTask("42"),
	})
	if err != nil {
		t.Fatalf("CheckSubmission() error = %v", err)
	}

	if !resp.Result.IsCorrect {
		t.Errorf("IsCorrect = false: %+v", resp.Result)
	}
	if resp.Progress.State != domain.StateFullyComplete {
		t.Errorf("State = %q; want fully_complete", resp.Progress.State)
	}
	if resp.AttemptID == "" {
		t.Error("AttemptID not set")
	}
	if len(h.attStore.attempts) != 1 {
		t.Errorf("attempts recorded = %d; want 1", len(h.attStore.attempts))
	}
	if len(h.publisher.events) != 1 {
		t.Fatalf("events published = %d; want 1", len(h.publisher.events))
	}
	if h.publisher.events[0].LessonID != "l1" || !h.publisher.events[0].Success {
		t.Errorf("event = %+v", h.publisher.events[0])
	}
}

func TestCheckSubmission_IncorrectHoldsState(t *testing.T) {
	h := newHarness(t, &fakeExecutor{result: &sandbox.ExecResult{Stdout: "wrong\n"}})
	ctx := context.Background()

	resp, err := h.svc.CheckSubmission(ctx, CheckRequest{
		LessonID:     "l1",
		CellID:       "cell-1",
		SubmissionID: "sub-1",
		Code:         "print('wrong')",
		Task:         outputTask("42"),
	})
	if err != nil {
		t.Fatalf("CheckSubmission() error = %v", err)
	}

	if resp.Result.IsCorrect {
		t.Error("IsCorrect = true for wrong output")
	}
	if resp.Progress.State.IsComplete() {
		t.Errorf("State = %q; incorrect submission must not complete", resp.Progress.State)
	}
	// The attempt is still on record.
	if len(h.attStore.attempts) != 1 {
		t.Errorf("attempts recorded = %d; want 1", len(h.attStore.attempts))
	}
}

func TestCheckSubmission_ExecutorFailure(t *testing.T) {
	h := newHarness(t, &fakeExecutor{err: errors.New("docker not reachable")})

	_, err := h.svc.CheckSubmission(context.Background(), CheckRequest{
		LessonID:     "l1",
		CellID:       "cell-1",
		SubmissionID: "sub-1",
		Code:         "print(1)",
		Task:         outputTask("1"),
	})
	if err == nil {
		t.Fatal("expected error for sandbox infrastructure failure")
	}
	if len(h.attStore.attempts) != 0 {
		t.Error("no attempt should be recorded when execution never ran")
	}
}

func TestCheckSubmission_DuplicateInFlight(t *testing.T) {
	executor := &fakeExecutor{
		result:  &sandbox.ExecResult{Stdout: "1\n"},
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	h := newHarness(t, executor)
	ctx := context.Background()

	req := CheckRequest{
		LessonID:     "l1",
		CellID:       "cell-1",
		SubmissionID: "sub-1",
		Code:         "print(1)",
		Task:         outputTask("1"),
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.CheckSubmission(ctx, req)
		done <- err
	}()

	<-executor.started // first check is now inside the sandbox

	_, err := h.svc.CheckSubmission(ctx, req)
	if !errors.Is(err, domain.ErrCheckInFlight) {
		t.Errorf("duplicate error = %v; want ErrCheckInFlight", err)
	}

	close(executor.gate)
	if err := <-done; err != nil {
		t.Fatalf("first CheckSubmission() error = %v", err)
	}

	// The slot is released, a re-check is allowed now.
	executor.started = nil
	executor.gate = nil
	if _, err := h.svc.CheckSubmission(ctx, req); err != nil {
		t.Errorf("re-check after release error = %v", err)
	}
}

func TestCheckSubmission_PublishFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t, &fakeExecutor{result: &sandbox.ExecResult{Stdout: "42\n"}})
	h.publisher.err = errors.New("broker down")

	resp, err := h.svc.CheckSubmission(context.Background(), CheckRequest{
		LessonID:     "l1",
		CellID:       "cell-1",
		SubmissionID: "sub-1",
		Code:         "print(42)",
		Task:         outputTask("42"),
	})
	if err != nil {
		t.Fatalf("CheckSubmission() error = %v", err)
	}
	if !resp.Result.IsCorrect {
		t.Error("grading outcome must not depend on the broker")
	}
}

func TestCheckSubmission_ProgressSaveFailure(t *testing.T) {
	h := newHarness(t, &fakeExecutor{result: &sandbox.ExecResult{Stdout: "42\n"}})
	h.progStore.saveErr = errors.New("disk full")

	_, err := h.svc.CheckSubmission(context.Background(), CheckRequest{
		LessonID:     "l1",
		CellID:       "cell-1",
		SubmissionID: "sub-1",
		Code:         "print(42)",
		Task:         outputTask("42"),
	})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("error = %v; want ErrPersistence", err)
	}
}

func TestFacade_ProgressOperations(t *testing.T) {
	h := newHarness(t, &fakeExecutor{result: &sandbox.ExecResult{}})
	ctx := context.Background()

	p, err := h.svc.AcknowledgeSkip(ctx, "l1")
	if err != nil {
		t.Fatalf("AcknowledgeSkip() error = %v", err)
	}
	if p.State != domain.StateSkippedComplete {
		t.Errorf("State = %q; want skipped_complete", p.State)
	}

	p, err = h.svc.RetryLesson(ctx, "l1")
	if err != nil {
		t.Fatalf("RetryLesson() error = %v", err)
	}
	if p.State != domain.StateNotStarted {
		t.Errorf("State = %q; want not_started", p.State)
	}

	p, err = h.svc.ForceComplete(ctx, "l1")
	if err != nil {
		t.Fatalf("ForceComplete() error = %v", err)
	}
	if p.State != domain.StateManuallyComplete {
		t.Errorf("State = %q; want manually_complete", p.State)
	}
}

func TestFacade_AttemptQueries(t *testing.T) {
	h := newHarness(t, &fakeExecutor{result: &sandbox.ExecResult{Stdout: "42\n"}})
	ctx := context.Background()

	done, err := h.svc.IsCellCompleted(ctx, "cell-1")
	if err != nil {
		t.Fatalf("IsCellCompleted() error = %v", err)
	}
	if done {
		t.Error("IsCellCompleted = true with no attempts")
	}

	_, err = h.svc.CheckSubmission(ctx, CheckRequest{
		LessonID: "l1", CellID: "cell-1", SubmissionID: "sub-1",
		Code: "print(42)", Task: outputTask("42"),
	})
	if err != nil {
		t.Fatalf("CheckSubmission() error = %v", err)
	}

	stats, err := h.svc.GetAttemptStats(ctx, "cell-1")
	if err != nil {
		t.Fatalf("GetAttemptStats() error = %v", err)
	}
	if stats.Total != 1 || stats.Succeeded != 1 {
		t.Errorf("stats = %+v; want 1/1", stats)
	}

	done, err = h.svc.IsCellCompleted(ctx, "cell-1")
	if err != nil {
		t.Fatalf("IsCellCompleted() error = %v", err)
	}
	if !done {
		t.Error("IsCellCompleted = false after success")
	}
}
