// Package daemon is the long-running server mode: it wires storage, the
// sandbox, the model provider and the broker from environment configuration
// and exposes the assistant's operations over HTTP.
package daemon

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/config"
	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/llm"
	"github.com/Ip-59/teachai/internal/progress"
	"github.com/Ip-59/teachai/internal/queue"
	"github.com/Ip-59/teachai/internal/repository"
	"github.com/Ip-59/teachai/internal/sandbox"
	"github.com/Ip-59/teachai/internal/service"
	"github.com/Ip-59/teachai/internal/storage/sqlite"
	"github.com/Ip-59/teachai/internal/taskgen"
)

// Server is the teachai daemon HTTP server.
type Server struct {
	cfg    *config.Config
	server *http.Server
	router *http.ServeMux

	svc      *service.Service
	provider string
	backend  string

	// owned resources, closed on shutdown
	pool      *pgxpool.Pool
	attemptDB *sql.DB
	liteDB    *sqlite.DB
	queueConn *queue.Connection
	executor  sandbox.Executor
}

// ServerConfig holds configuration for creating a new server.
type ServerConfig struct {
	Config *config.Config
	Addr   string
}

// NewServer wires the full daemon stack from configuration.
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	s := &Server{
		cfg:    cfg.Config,
		router: http.NewServeMux(),
	}

	provider, err := s.setupProvider()
	if err != nil {
		return nil, fmt.Errorf("setup llm provider: %w", err)
	}

	s.executor = s.setupExecutor()

	progStore, attStore, err := s.setupStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	var publisher service.EventPublisher
	if s.cfg.RabbitMQURL != "" {
		conn, err := queue.NewConnection(s.cfg.RabbitMQURL)
		if err != nil {
			slog.Warn("broker not reachable, attempt events disabled", "error", err)
		} else {
			s.queueConn = conn
			publisher = queue.NewProducer(conn)
		}
	}

	templates, err := taskgen.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load fallback templates: %w", err)
	}
	generator := taskgen.NewGenerator(provider, s.executor, templates, slog.Default())

	s.svc = service.New(
		generator,
		s.executor,
		progress.NewService(progStore, slog.Default()),
		attemptlog.NewService(attStore, slog.Default()),
		publisher,
		slog.Default(),
	)

	s.setupRoutes()

	addr := cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:7433"
	}
	handler := recoveryMiddleware(correlationIDMiddleware(loggingMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // sandbox runs can take the full budget
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupProvider builds the configured model provider wrapped with circuit
// breaker, retry and bulkhead.
func (s *Server) setupProvider() (llm.Provider, error) {
	var provider llm.Provider

	switch s.cfg.LLMProvider {
	case "claude":
		provider = llm.NewClaudeProvider(llm.ClaudeConfig{
			APIKey: s.cfg.LLMAPIKey,
			Model:  s.cfg.LLMModel,
		})
	case "openai":
		provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey: s.cfg.LLMAPIKey,
			Model:  s.cfg.LLMModel,
		})
	case "ollama":
		provider = llm.NewOllamaProvider(llm.OllamaConfig{
			BaseURL: s.cfg.OllamaURL,
			Model:   s.cfg.LLMModel,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", s.cfg.LLMProvider)
	}

	s.provider = s.cfg.LLMProvider
	slog.Info("registered LLM provider", "name", s.provider, "model", s.cfg.LLMModel)

	return llm.NewResilientProvider(provider, llm.DefaultResilientConfig()), nil
}

// setupExecutor builds the sandbox backend. A missing Docker daemon degrades
// to the subprocess backend instead of failing startup.
func (s *Server) setupExecutor() sandbox.Executor {
	sandboxCfg := sandbox.Config{
		Timeout:  time.Duration(s.cfg.SandboxTimeout) * time.Second,
		MemoryMB: s.cfg.SandboxMemoryMB,
		CPULimit: s.cfg.SandboxCPULimit,
		Image:    s.cfg.SandboxImage,
	}

	if s.cfg.SandboxBackend == "docker" {
		executor, err := sandbox.NewDockerExecutor(sandboxCfg)
		if err == nil {
			s.backend = "docker"
			return executor
		}
		slog.Warn("Docker sandbox not available, using subprocess backend", "error", err)
	}

	s.backend = "subprocess"
	return sandbox.NewSubprocessExecutor(sandboxCfg)
}

// setupStorage opens Postgres when DATABASE_URL is set, SQLite otherwise.
func (s *Server) setupStorage(ctx context.Context) (progress.Store, attemptlog.Store, error) {
	if s.cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		s.pool = pool

		db, err := sql.Open("postgres", s.cfg.DatabaseURL)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("open postgres for attempts: %w", err)
		}
		s.attemptDB = db

		slog.Info("storage ready", "backend", "postgres")
		return repository.NewProgressRepository(pool), repository.NewAttemptRepository(db), nil
	}

	path := s.cfg.SQLitePath
	if path == "" {
		dir, err := config.EnsureDataDir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, "teachai.db")
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	s.liteDB = db

	slog.Info("storage ready", "backend", "sqlite", "path", path)
	return sqlite.NewProgressStore(db), sqlite.NewAttemptStore(db), nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	s.router.HandleFunc("POST /v1/tasks/generate", s.handleGenerateTask)
	s.router.HandleFunc("POST /v1/submissions/check", s.handleCheckSubmission)

	s.router.HandleFunc("GET /v1/lessons/{id}/progress", s.handleGetProgress)
	s.router.HandleFunc("POST /v1/lessons/{id}/test-result", s.handleTestResult)
	s.router.HandleFunc("POST /v1/lessons/{id}/task-result", s.handleTaskResult)
	s.router.HandleFunc("POST /v1/lessons/{id}/skip", s.handleSkip)
	s.router.HandleFunc("POST /v1/lessons/{id}/force-complete", s.handleForceComplete)
	s.router.HandleFunc("POST /v1/lessons/{id}/retry", s.handleRetry)

	s.router.HandleFunc("GET /v1/cells/{id}/stats", s.handleCellStats)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("starting teachai daemon",
		"addr", s.server.Addr,
		"llm_provider", s.provider,
		"sandbox", s.backend,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	if closer, ok := s.executor.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("close sandbox executor", "error", err)
		}
	}
	if s.queueConn != nil {
		if err := s.queueConn.Close(); err != nil {
			slog.Warn("close broker connection", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.attemptDB != nil {
		if err := s.attemptDB.Close(); err != nil {
			slog.Warn("close attempt db", "error", err)
		}
	}
	if s.liteDB != nil {
		if err := s.liteDB.Close(); err != nil {
			slog.Warn("close sqlite db", "error", err)
		}
	}

	return s.server.Shutdown(ctx)
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":       "running",
		"version":      "0.1.0",
		"llm_provider": s.provider,
		"sandbox":      s.backend,
	})
}

func (s *Server) handleGenerateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LessonTitle       string `json:"lesson_title"`
		LessonDescription string `json:"lesson_description"`
		LessonContent     string `json:"lesson_content"`
		Style             string `json:"style"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.LessonTitle == "" {
		s.jsonError(w, http.StatusBadRequest, "lesson_title is required", nil)
		return
	}

	task := s.svc.GenerateTask(r.Context(), taskgen.GenerateRequest{
		LessonTitle:       req.LessonTitle,
		LessonDescription: req.LessonDescription,
		LessonContent:     req.LessonContent,
		Style:             req.Style,
	})

	s.jsonResponse(w, http.StatusOK, task)
}

func (s *Server) handleCheckSubmission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LessonID     string       `json:"lesson_id"`
		CellID       string       `json:"cell_id"`
		SubmissionID string       `json:"submission_id"`
		Code         string       `json:"code"`
		Task         *domain.Task `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.LessonID == "" || req.SubmissionID == "" || req.Task == nil {
		s.jsonError(w, http.StatusBadRequest, "lesson_id, submission_id and task are required", nil)
		return
	}

	resp, err := s.svc.CheckSubmission(r.Context(), service.CheckRequest{
		LessonID:     req.LessonID,
		CellID:       req.CellID,
		SubmissionID: req.SubmissionID,
		Code:         req.Code,
		Task:         req.Task,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"result":     resp.Result,
		"progress":   resp.Progress,
		"attempt_id": resp.AttemptID,
	})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleTestResult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p, err := s.svc.ApplyTestResult(r.Context(), r.PathValue("id"), req.Score)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Correct bool `json:"correct"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p, err := s.svc.ApplyTaskResult(r.Context(), r.PathValue("id"), req.Correct)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.AcknowledgeSkip(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleForceComplete(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.ForceComplete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.RetryLesson(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleCellStats(w http.ResponseWriter, r *http.Request) {
	cellID := r.PathValue("id")

	stats, err := s.svc.GetAttemptStats(r.Context(), cellID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	completed, err := s.svc.IsCellCompleted(r.Context(), cellID)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"cell_id":   cellID,
		"total":     stats.Total,
		"succeeded": stats.Succeeded,
		"first_at":  stats.FirstAt,
		"last_at":   stats.LastAt,
		"completed": completed,
	})
}

// Helper methods

// serviceError maps domain errors to HTTP status codes.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCheckInFlight):
		s.jsonError(w, http.StatusConflict, "a check for this submission is already running", err)
	case errors.Is(err, domain.ErrProgressNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		s.jsonError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, domain.ErrPersistence):
		s.jsonError(w, http.StatusInternalServerError, "persistence failure", err)
	default:
		s.jsonError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}
