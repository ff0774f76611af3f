package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrToolAlreadyExists = errors.New("tool already registered")
	ErrEmptyToolName     = errors.New("tool name is empty")
)

// Handler executes one tool invocation. args is the raw JSON argument object
// produced by the model; handlers decode and validate it themselves and
// report bad input through Result.IsError rather than crashing the session.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Result is a tool execution outcome fed back into the reasoning loop.
// NotFound marks a well-formed query that matched no resume data. IsError
// marks invalid arguments; the content explains the problem to the model.
type Result struct {
	Content  string
	NotFound bool
	IsError  bool
}

type entry struct {
	info    *schema.ToolInfo
	handler Handler
}

// Registry maps tool names to declared contracts and typed handlers. It is
// populated once at startup and read-only afterwards, so lookups need no
// locking. Tools are pure reads over the resume store and know nothing about
// sessions or streaming.
type Registry struct {
	entries map[string]entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool contract and its handler.
func (r *Registry) Register(info *schema.ToolInfo, handler Handler) error {
	if info == nil || info.Name == "" {
		return ErrEmptyToolName
	}
	if handler == nil {
		return fmt.Errorf("tool %s: nil handler", info.Name)
	}
	if _, exists := r.entries[info.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyExists, info.Name)
	}

	r.entries[info.Name] = entry{info: info, handler: handler}
	r.order = append(r.order, info.Name)
	return nil
}

// Infos returns the declared contracts in registration order, for binding to
// the chat model.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.entries[name].info)
	}
	return infos
}

// Dispatch invokes the named tool with the model-supplied arguments. Unknown
// tool names surface as ErrToolNotFound; everything the handler can express
// comes back through Result.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	e, exists := r.entries[name]
	if !exists {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		return Result{}, fmt.Errorf("tool %s: %w", name, err)
	}
	return result, nil
}
