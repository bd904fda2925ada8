// Package registry tracks which backend model new generations use.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"codegend/pkg/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "qwen2.5:14b"

// Lister lists the models installed on the backend; *llm.Client satisfies it.
type Lister interface {
	Tags(ctx context.Context) ([]types.Model, error)
}

// modelNotFoundError is returned by Set for names the backend does not have.
type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

// IsModelNotFound reports whether err came from Set rejecting an unknown model.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// Registry holds the current model selection.
type Registry struct {
	lister Lister

	mu      sync.RWMutex
	current string
}

func New(lister Lister, initial string) *Registry {
	if strings.TrimSpace(initial) == "" {
		initial = DefaultModel
	}
	return &Registry{lister: lister, current: initial}
}

// Current returns the selected model name.
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// List returns the backend's installed models.
func (r *Registry) List(ctx context.Context) ([]types.Model, error) {
	if r.lister == nil {
		return nil, fmt.Errorf("no model backend configured")
	}
	return r.lister.Tags(ctx)
}

// Set selects name after checking the backend has it.
func (r *Registry) Set(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return modelNotFoundError{name: name}
	}
	models, err := r.List(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models {
		if m.Name == name {
			r.mu.Lock()
			r.current = name
			r.mu.Unlock()
			return nil
		}
	}
	return modelNotFoundError{name: name}
}
