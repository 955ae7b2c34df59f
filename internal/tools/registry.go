package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is a capability the agent may call while composing an answer.
type Tool interface {
	Name() string
	Description() string
	// InputSchema is a JSON Schema object describing the tool input.
	InputSchema() map[string]any
	Invoke(ctx context.Context, input map[string]any) (string, error)
}

// Registry stores tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.MustRegister(t)
	}
	return r
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is required")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = t
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (string, error) {
	if name == "" {
		return "", fmt.Errorf("tool name is required")
	}
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Invoke(ctx, input)
}
