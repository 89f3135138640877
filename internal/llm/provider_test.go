package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockProvider is a test implementation of Provider
type mockProvider struct {
	name     string
	response *Response
	err      error
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.providers == nil {
		t.Error("providers map should not be nil")
	}
	if r.defaultP != "" {
		t.Error("default provider should be empty initially")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{name: "test"}

	r.Register("test", p)

	got, err := r.Get("test")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != p {
		t.Error("Get() returned different provider")
	}
}

func TestRegistry_SetDefault(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{name: "test"}

	// Set default before registering should fail
	if err := r.SetDefault("test"); err == nil {
		t.Error("SetDefault() should fail for non-existent provider")
	}

	r.Register("test", p)
	if err := r.SetDefault("test"); err != nil {
		t.Errorf("SetDefault() error = %v", err)
	}

	got, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got != p {
		t.Error("Default() returned different provider")
	}
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get() error = %v, want ErrProviderNotFound", err)
	}
}

func TestRegistry_Default_Empty(t *testing.T) {
	r := NewRegistry()
	_, err := r.Default()
	if !errors.Is(err, ErrNoDefaultProvider) {
		t.Errorf("Default() error = %v, want ErrNoDefaultProvider", err)
	}
}

func TestRegistry_Default_AutoSelect(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{name: "only"}
	r.Register("only", p)

	got, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got != p {
		t.Error("Default() should auto-select the only provider")
	}
}

func TestClaudeProvider_Complete(t *testing.T) {
	var captured claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&captured)

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": `{"title":"Loops"}`}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer server.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "test-key", BaseURL: server.URL})
	resp, err := p.Complete(context.Background(), &Request{
		System:      "you generate tasks",
		Prompt:      "lesson content here",
		Temperature: 0.2,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content != `{"title":"Loops"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if captured.System != "you generate tasks" {
		t.Errorf("system prompt = %q", captured.System)
	}
	if captured.MaxTokens != 1000 {
		t.Errorf("max_tokens = %d", captured.MaxTokens)
	}
}

func TestClaudeProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "k", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), &Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing bearer token")
		}
		json.NewDecoder(r.Body).Decode(&captured)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "hello"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 7, "completion_tokens": 3},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	resp, err := p.Complete(context.Background(), &Request{
		System:         "sys",
		Prompt:         "user",
		WantStructured: true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content != "hello" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("messages = %+v, want system message first", captured.Messages)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Error("WantStructured should request json_object response format")
	}
}

func TestOllamaProvider_Complete(t *testing.T) {
	var captured ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)

		json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": "ok"},
			"done":              true,
			"done_reason":       "stop",
			"eval_count":        4,
			"prompt_eval_count": 9,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: server.URL, Model: "codellama"})
	resp, err := p.Complete(context.Background(), &Request{Prompt: "x", WantStructured: true})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if captured.Stream {
		t.Error("stream must be disabled")
	}
	if captured.Format != "json" {
		t.Error("WantStructured should request json format")
	}
	if captured.Model != "codellama" {
		t.Errorf("model = %q", captured.Model)
	}
}

func TestResilientProvider_PassThrough(t *testing.T) {
	inner := &mockProvider{name: "inner", response: &Response{Content: "done"}}
	p := NewResilientProvider(inner, ResilientConfig{})
	defer p.Close()

	resp, err := p.Complete(context.Background(), &Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "done" {
		t.Errorf("Content = %q", resp.Content)
	}
	if p.Name() != "inner" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestRetryableCompletionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", errors.New("API error (status 429): slow down"), true},
		{"server error", errors.New("API error (status 500): oops"), true},
		{"bad request", errors.New("API error (status 400): bad"), false},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableCompletionError(tt.err); got != tt.want {
				t.Errorf("retryableCompletionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
