// Package llm abstracts the completion providers used for task generation.
// The assistant treats provider output as opaque text: structured task
// records may arrive bare or wrapped in prose, and the caller extracts them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrNoDefaultProvider = errors.New("no default provider configured")
)

// Provider is a synchronous completion service.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is one completion request.
type Request struct {
	Model       string // empty selects the provider's configured model
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// WantStructured asks for a JSON response where the API supports
	// enforcing it; elsewhere it is a hint only.
	WantStructured bool
}

// Response is one completion result.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Registry holds the configured providers and the default selection.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	defaultP  string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider under name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// SetDefault names the provider Default returns. The provider must already
// be registered.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	r.defaultP = name
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Default returns the configured default provider. When the default is
// unset, "auto", or missing, any registered provider is returned so that a
// learner with exactly one configured provider never has to pick.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultP != "" && r.defaultP != "auto" {
		if p, ok := r.providers[r.defaultP]; ok {
			return p, nil
		}
	}

	for _, p := range r.providers {
		return p, nil
	}

	return nil, ErrNoDefaultProvider
}

// List returns the registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
