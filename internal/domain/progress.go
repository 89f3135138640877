package domain

import "time"

// TestPassThreshold is the knowledge-test score a learner must exceed
// (strictly) for the test to count as passed.
const TestPassThreshold = 40.0

// CompletionState is the single source of truth for lesson completion.
// It replaces the separately-settable flags of earlier designs: every
// mutation goes through one of the transition methods below.
type CompletionState string

const (
	StateNotStarted             CompletionState = "not_started"
	StateTestRecorded           CompletionState = "test_recorded"
	StateTaskPending            CompletionState = "task_pending"
	StateTaskPassedAwaitingTest CompletionState = "task_passed_awaiting_test"
	StateFullyComplete          CompletionState = "fully_complete"
	StateManuallyComplete       CompletionState = "manually_complete"
	StateSkippedComplete        CompletionState = "skipped_complete"
)

// IsComplete returns true for any terminal completed state.
func (s CompletionState) IsComplete() bool {
	return s == StateFullyComplete || s == StateManuallyComplete || s == StateSkippedComplete
}

// LessonProgress tracks a learner's standing for one lesson.
// The lesson ID is a composite key "section:topic:lesson".
type LessonProgress struct {
	LessonID     string          `json:"lesson_id"`
	TestScore    float64         `json:"test_score"` // 0..100
	TestPassed   bool            `json:"test_passed"`
	TaskRequired bool            `json:"task_required"`
	TaskPassed   *bool           `json:"task_passed,omitempty"`
	State        CompletionState `json:"completion_state"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewLessonProgress creates a fresh record for a lesson's first submission.
func NewLessonProgress(lessonID string) *LessonProgress {
	return &LessonProgress{
		LessonID:     lessonID,
		TaskRequired: true,
		State:        StateNotStarted,
		UpdatedAt:    time.Now(),
	}
}

// RecordTest records a knowledge-test score. A test alone never completes a
// lesson: if the lesson was already complete the state is preserved, and a
// pending task credit (TaskPassedAwaitingTest) upgrades to FullyComplete
// once the retaken test passes.
func (p *LessonProgress) RecordTest(score float64) {
	p.TestScore = score
	p.TestPassed = score > TestPassThreshold
	p.UpdatedAt = time.Now()

	switch p.State {
	case StateFullyComplete, StateManuallyComplete, StateSkippedComplete:
		// Completed lessons keep their state; only the score updates.
	case StateTaskPassedAwaitingTest:
		if p.TestPassed {
			p.State = StateFullyComplete
		}
	default:
		p.State = StateTestRecorded
	}
}

// RecordTask records a coding-task verdict. Correct submissions complete the
// lesson only when the test is already passed; otherwise the credit is held
// until the test is retaken. Incorrect submissions leave the state unchanged
// so the learner may retry without limit.
func (p *LessonProgress) RecordTask(correct bool) {
	p.UpdatedAt = time.Now()
	if !correct {
		v := false
		p.TaskPassed = &v
		return
	}

	v := true
	p.TaskPassed = &v
	if p.State.IsComplete() {
		return
	}
	if p.TestPassed {
		p.State = StateFullyComplete
	} else {
		p.State = StateTaskPassedAwaitingTest
	}
}

// AcknowledgeSkip marks the lesson complete because the generated task was
// not needed (no executable material). Applies regardless of test outcome.
func (p *LessonProgress) AcknowledgeSkip() {
	p.TaskRequired = false
	p.State = StateSkippedComplete
	p.UpdatedAt = time.Now()
}

// ForceComplete records an explicit learner override ("continue anyway").
// The true test score is preserved; the state is distinct from an organically
// earned FullyComplete.
func (p *LessonProgress) ForceComplete() {
	p.State = StateManuallyComplete
	p.UpdatedAt = time.Now()
}

// Retry resets the lesson to NotStarted. Score history is retained for
// analytics but no longer governs current completion.
func (p *LessonProgress) Retry() {
	p.State = StateNotStarted
	p.TaskPassed = nil
	p.UpdatedAt = time.Now()
}
