package mcp

import (
	"context"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/service"
	"github.com/Ip-59/teachai/internal/taskgen"
)

// Server wraps the MCP server with the assistant's operations
type Server struct {
	mcpServer *server.Server
	svc       *service.Service
}

// NewServer creates a new MCP server exposing the assistant's tools
func NewServer(svc *service.Service) *Server {
	s := &Server{svc: svc}

	s.mcpServer = server.New(server.Info{
		Name:    "teachai",
		Version: "0.1.0",
	}, server.WithInstructions(`
TeachAI is an e-learning assistant core for Python lessons.
It generates verified coding tasks from lesson material, grades learner
submissions in a sandbox, and tracks lesson completion.

Available tools:
- teachai_generate_task: Generate a coding task for a lesson
- teachai_check_submission: Grade a learner submission against a task
- teachai_apply_test_result: Record a knowledge-test score
- teachai_apply_task_result: Record an externally graded task verdict
- teachai_acknowledge_skip: Complete a lesson whose task was not needed
- teachai_force_complete: Learner override ("continue anyway")
- teachai_retry_lesson: Reset a lesson, keeping score history
- teachai_progress: Get lesson completion status
- teachai_stats: Get attempt statistics for a task cell

A lesson is fully complete only when its test score exceeds 40 and the
coding task passed (or was skipped/overridden).
`))

	s.registerTools()

	return s
}

// registerTools registers all assistant MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("teachai_generate_task").
		Description("Generate a verified coding task from lesson material.").
		Handler(s.handleGenerateTask)

	s.mcpServer.Tool("teachai_check_submission").
		Description("Run a learner submission in the sandbox and grade it.").
		Handler(s.handleCheckSubmission)

	s.mcpServer.Tool("teachai_apply_test_result").
		Description("Record a knowledge-test score for a lesson.").
		Handler(s.handleApplyTestResult)

	s.mcpServer.Tool("teachai_apply_task_result").
		Description("Record an externally graded coding-task verdict.").
		Handler(s.handleApplyTaskResult)

	s.mcpServer.Tool("teachai_acknowledge_skip").
		Description("Complete a lesson whose generated task was not needed.").
		Handler(s.handleAcknowledgeSkip)

	s.mcpServer.Tool("teachai_force_complete").
		Description("Mark a lesson complete on explicit learner request.").
		Handler(s.handleForceComplete)

	s.mcpServer.Tool("teachai_retry_lesson").
		Description("Reset a lesson to not started, keeping score history.").
		Handler(s.handleRetryLesson)

	s.mcpServer.Tool("teachai_progress").
		Description("Get the completion status of a lesson.").
		Handler(s.handleProgress)

	s.mcpServer.Tool("teachai_stats").
		Description("Get attempt statistics for a task cell.").
		Handler(s.handleStats)
}

// Input/Output types for tools

type GenerateTaskInput struct {
	LessonTitle       string `json:"lesson_title" jsonschema:"description=Title of the lesson"`
	LessonDescription string `json:"lesson_description,omitempty" jsonschema:"description=Short summary of the lesson"`
	LessonContent     string `json:"lesson_content,omitempty" jsonschema:"description=Lesson material the task must be based on"`
	Style             string `json:"style,omitempty" jsonschema:"description=Preferred task style or difficulty"`
}

type GenerateTaskOutput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	StarterCode    string   `json:"starter_code"`
	ExpectedOutput string   `json:"expected_output,omitempty"`
	Hints          []string `json:"hints,omitempty"`
	IsNeeded       bool     `json:"is_needed"`
	SkipReason     string   `json:"skip_reason,omitempty"`
	CheckVariable  string   `json:"check_variable,omitempty"`
}

type CheckSubmissionInput struct {
	LessonID     string `json:"lesson_id" jsonschema:"description=Lesson the submission belongs to"`
	CellID       string `json:"cell_id" jsonschema:"description=Task cell the submission grades"`
	SubmissionID string `json:"submission_id" jsonschema:"description=Unique ID of this submission"`
	Code         string `json:"code" jsonschema:"description=Learner Python code"`

	// The task contract the submission is graded against.
	ExpectedOutput        string `json:"expected_output,omitempty" jsonschema:"description=Expected stdout when grading by output"`
	CheckVariable         string `json:"check_variable,omitempty" jsonschema:"description=Variable name when grading by final variable state"`
	ExpectedVariableValue any    `json:"expected_variable_value,omitempty" jsonschema:"description=Expected value of the checked variable"`
}

type CheckSubmissionOutput struct {
	IsCorrect    bool   `json:"is_correct"`
	ActualOutput string `json:"actual_output"`
	ErrorMessage string `json:"error_message,omitempty"`
	State        string `json:"completion_state"`
	AttemptID    string `json:"attempt_id"`
}

type TestResultInput struct {
	LessonID string  `json:"lesson_id" jsonschema:"description=Lesson the test belongs to"`
	Score    float64 `json:"score" jsonschema:"description=Test score from 0 to 100"`
}

type TaskResultInput struct {
	LessonID string `json:"lesson_id" jsonschema:"description=Lesson the task belongs to"`
	Correct  bool   `json:"correct" jsonschema:"description=Whether the task was solved correctly"`
}

type LessonInput struct {
	LessonID string `json:"lesson_id" jsonschema:"description=Composite lesson ID"`
}

type ProgressOutput struct {
	LessonID   string  `json:"lesson_id"`
	State      string  `json:"completion_state"`
	IsComplete bool    `json:"is_complete"`
	TestScore  float64 `json:"test_score"`
	TestPassed bool    `json:"test_passed"`
	TaskPassed *bool   `json:"task_passed,omitempty"`
}

type StatsInput struct {
	CellID string `json:"cell_id" jsonschema:"description=Task cell to query"`
}

type StatsOutput struct {
	Total     int  `json:"total"`
	Succeeded int  `json:"succeeded"`
	Completed bool `json:"completed"`
}

func progressOutput(p *domain.LessonProgress) ProgressOutput {
	return ProgressOutput{
		LessonID:   p.LessonID,
		State:      string(p.State),
		IsComplete: p.State.IsComplete(),
		TestScore:  p.TestScore,
		TestPassed: p.TestPassed,
		TaskPassed: p.TaskPassed,
	}
}

// Tool handlers

func (s *Server) handleGenerateTask(ctx context.Context, input GenerateTaskInput) (GenerateTaskOutput, error) {
	task := s.svc.GenerateTask(ctx, taskgen.GenerateRequest{
		LessonTitle:       input.LessonTitle,
		LessonDescription: input.LessonDescription,
		LessonContent:     input.LessonContent,
		Style:             input.Style,
	})

	return GenerateTaskOutput{
		Title:          task.Title,
		Description:    task.Description,
		StarterCode:    task.StarterCode,
		ExpectedOutput: task.ExpectedOutput,
		Hints:          task.Hints,
		IsNeeded:       task.IsNeeded,
		SkipReason:     task.SkipReason,
		CheckVariable:  task.CheckVariable,
	}, nil
}

func (s *Server) handleCheckSubmission(ctx context.Context, input CheckSubmissionInput) (CheckSubmissionOutput, error) {
	task := &domain.Task{
		ExpectedOutput:        input.ExpectedOutput,
		CheckVariable:         input.CheckVariable,
		ExpectedVariableValue: input.ExpectedVariableValue,
		IsNeeded:              true,
	}

	resp, err := s.svc.CheckSubmission(ctx, service.CheckRequest{
		LessonID:     input.LessonID,
		CellID:       input.CellID,
		SubmissionID: input.SubmissionID,
		Code:         input.Code,
		Task:         task,
	})
	if err != nil {
		return CheckSubmissionOutput{}, fmt.Errorf("check submission: %w", err)
	}

	return CheckSubmissionOutput{
		IsCorrect:    resp.Result.IsCorrect,
		ActualOutput: resp.Result.ActualOutput,
		ErrorMessage: resp.Result.ErrorMessage,
		State:        string(resp.Progress.State),
		AttemptID:    resp.AttemptID,
	}, nil
}

func (s *Server) handleApplyTestResult(ctx context.Context, input TestResultInput) (ProgressOutput, error) {
	p, err := s.svc.ApplyTestResult(ctx, input.LessonID, input.Score)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("apply test result: %w", err)
	}
	return progressOutput(p), nil
}

func (s *Server) handleApplyTaskResult(ctx context.Context, input TaskResultInput) (ProgressOutput, error) {
	p, err := s.svc.ApplyTaskResult(ctx, input.LessonID, input.Correct)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("apply task result: %w", err)
	}
	return progressOutput(p), nil
}

func (s *Server) handleAcknowledgeSkip(ctx context.Context, input LessonInput) (ProgressOutput, error) {
	p, err := s.svc.AcknowledgeSkip(ctx, input.LessonID)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("acknowledge skip: %w", err)
	}
	return progressOutput(p), nil
}

func (s *Server) handleForceComplete(ctx context.Context, input LessonInput) (ProgressOutput, error) {
	p, err := s.svc.ForceComplete(ctx, input.LessonID)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("force complete: %w", err)
	}
	return progressOutput(p), nil
}

func (s *Server) handleRetryLesson(ctx context.Context, input LessonInput) (ProgressOutput, error) {
	p, err := s.svc.RetryLesson(ctx, input.LessonID)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("retry lesson: %w", err)
	}
	return progressOutput(p), nil
}

func (s *Server) handleProgress(ctx context.Context, input LessonInput) (ProgressOutput, error) {
	p, err := s.svc.GetProgress(ctx, input.LessonID)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("get progress: %w", err)
	}
	return progressOutput(p), nil
}

func (s *Server) handleStats(ctx context.Context, input StatsInput) (StatsOutput, error) {
	stats, err := s.svc.GetAttemptStats(ctx, input.CellID)
	if err != nil {
		return StatsOutput{}, fmt.Errorf("get stats: %w", err)
	}
	completed, err := s.svc.IsCellCompleted(ctx, input.CellID)
	if err != nil {
		return StatsOutput{}, fmt.Errorf("check completion: %w", err)
	}
	return StatsOutput{
		Total:     stats.Total,
		Succeeded: stats.Succeeded,
		Completed: completed,
	}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
