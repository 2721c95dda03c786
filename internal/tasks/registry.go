package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc executes one claimed task. Handlers must be idempotent; the
// queue delivers at least once.
type HandlerFunc func(ctx context.Context, args json.RawMessage) error

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

func (r *Registry) Register(taskName string, h HandlerFunc) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	if taskName == "" {
		return fmt.Errorf("empty task name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[taskName]; exists {
		return fmt.Errorf("handler already registered for task=%s", taskName)
	}
	r.handlers[taskName] = h
	return nil
}

func (r *Registry) Get(taskName string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskName]
	return h, ok
}
