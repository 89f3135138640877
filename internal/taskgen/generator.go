// Package taskgen builds coding exercises from lesson material via an LLM
// completion service and reconciles them against ground truth by running
// the reference solution through the sandbox.
package taskgen

import (
	"context"
	"log/slog"

	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/llm"
	"github.com/Ip-59/teachai/internal/sandbox"
)

// Generator creates verified tasks. Generation never fails hard: a model
// error falls back to a template task, and an unrecoverable error yields a
// placeholder skip task.
type Generator struct {
	provider  llm.Provider
	executor  sandbox.Executor
	templates *TemplateSet
	logger    *slog.Logger

	temperature float64
	maxTokens   int
}

// Option configures a Generator.
type Option func(*Generator)

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithMaxTokens overrides the default completion budget.
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// NewGenerator creates a task generator.
func NewGenerator(provider llm.Provider, executor sandbox.Executor, templates *TemplateSet, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		provider:    provider,
		executor:    executor,
		templates:   templates,
		logger:      logger,
		temperature: 0.3,
		maxTokens:   2000,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds a task from lesson material. The returned task always
// satisfies the generation invariants: either IsNeeded is false with a
// SkipReason, or the expected output (or expected variable value) has been
// verified against a sandbox run of the solution code.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (task *domain.Task) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("task generation panicked", "lesson", req.LessonTitle, "panic", r)
			task = placeholderTask("internal generation error")
		}
	}()

	task = g.requestTask(ctx, req)
	if !task.IsNeeded {
		return task
	}

	verified, ok := g.verify(ctx, task)
	if !ok {
		// Broken reference solution is a generation defect; swap in the
		// matching template task and verify that instead.
		g.logger.Warn("reference solution failed, using fallback task",
			"lesson", req.LessonTitle, "task", task.Title)
		verified, ok = g.verify(ctx, g.templates.Match(req.LessonTitle))
		if !ok {
			return placeholderTask("could not verify a working task for this lesson")
		}
	}
	task = verified

	if !task.Gradable() {
		g.logger.Warn("task is not gradable automatically",
			"lesson", req.LessonTitle, "task", task.Title)
	}
	for _, diag := range lintTask(task) {
		g.logger.Warn("task consistency check", "lesson", req.LessonTitle, "diagnostic", diag)
	}

	return task
}

// requestTask calls the model and parses its response, falling back to a
// keyword-matched template on any failure.
func (g *Generator) requestTask(ctx context.Context, req GenerateRequest) *domain.Task {
	resp, err := g.provider.Complete(ctx, &llm.Request{
		System:         systemPrompt,
		Prompt:         buildUserPrompt(req),
		Temperature:    g.temperature,
		MaxTokens:      g.maxTokens,
		WantStructured: true,
	})
	if err != nil {
		g.logger.Warn("model call failed, using fallback task", "lesson", req.LessonTitle, "error", err)
		return g.templates.Match(req.LessonTitle)
	}

	task, err := parseTask(resp.Content)
	if err != nil {
		g.logger.Warn("model response unusable, using fallback task", "lesson", req.LessonTitle, "error", err)
		return g.templates.Match(req.LessonTitle)
	}
	return task
}

func placeholderTask(reason string) *domain.Task {
	return &domain.Task{
		IsNeeded:   false,
		SkipReason: reason,
	}
}
