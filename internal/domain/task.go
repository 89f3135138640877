package domain

// Task represents a generated coding exercise with a verified expected result
type Task struct {
	Title       string   `json:"title"`
	Description string   `json:"description"` // contains all source data literally
	StarterCode string   `json:"starter_code"`
	// ExpectedOutput is the trimmed stdout of SolutionCode run to completion.
	// The generator re-verifies this against the sandbox before delivery.
	ExpectedOutput string   `json:"expected_output"`
	SolutionCode   string   `json:"solution_code"`
	Hints          []string `json:"hints"`

	// IsNeeded is false when the lesson contains no executable material;
	// SkipReason explains why and the fields above may be placeholders.
	IsNeeded   bool   `json:"is_needed"`
	SkipReason string `json:"skip_reason,omitempty"`

	// CheckVariable grades by final variable state instead of printed output.
	// Set only when ExpectedOutput is empty and the reference solution ends
	// in a bare assignment.
	CheckVariable         string `json:"check_variable,omitempty"`
	ExpectedVariableValue any    `json:"expected_variable_value,omitempty"`
}

// GradesByVariable returns true when the task is graded by final variable
// state rather than printed output.
func (t *Task) GradesByVariable() bool {
	return t.CheckVariable != ""
}

// Gradable returns true if the task can be graded automatically at all.
func (t *Task) Gradable() bool {
	return t.ExpectedOutput != "" || t.CheckVariable != ""
}

// ValidationResult is the outcome of grading a learner submission
type ValidationResult struct {
	IsCorrect    bool   `json:"is_correct"`
	ActualOutput string `json:"actual_output"` // trimmed captured stdout
	// ActualVariable is only set when the task has CheckVariable.
	ActualVariable any    `json:"actual_variable,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"` // exception text + trace on failure
}
