package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shaiso/conductor/internal/steps"
)

// Registry — реестр инструментов.
//
// Реализует steps.ToolInvoker: ошибка инструмента превращается
// в ToolResponse{Success: false}. Потокобезопасен.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными инструментами.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)

	r.Register(NewHTTPTool())
	r.Register(NewTransformTool())
	r.Register(NewEchoTool())

	return r
}

// Register регистрирует инструмент.
// Инструмент с тем же именем перезаписывается.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get возвращает инструмент по имени.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	return tool, nil
}

// Has проверяет, зарегистрирован ли инструмент.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tools[name]
	return exists
}

// Names возвращает отсортированный список имён.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Count возвращает количество инструментов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Unregister удаляет инструмент.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// InvokeTool вызывает инструмент по имени.
func (r *Registry) InvokeTool(ctx context.Context, name string, params map[string]any) (*steps.ToolResponse, error) {
	tool, err := r.Get(name)
	if err != nil {
		return &steps.ToolResponse{Success: false, Error: err.Error()}, nil
	}

	result, err := tool.Invoke(ctx, params)
	if err != nil {
		r.logger.Debug("tool failed", "tool", name, "error", err)
		return &steps.ToolResponse{Success: false, Error: err.Error()}, nil
	}

	return &steps.ToolResponse{Success: true, Result: result}, nil
}
