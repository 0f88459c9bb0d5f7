package steps

import (
	"context"
	"errors"
)

// Ошибки конфигурации. Они не превращаются в StepResult,
// а прерывают task целиком: повтор шага их не исправит.
var (
	// ErrUnknownStepKind — тип шага не распознан.
	ErrUnknownStepKind = errors.New("unknown step type")

	// ErrModelNotConfigured — llm шаг запущен без зарегистрированной модели.
	ErrModelNotConfigured = errors.New("model invocation is not configured")

	// ErrToolsNotConfigured — tool шаг запущен без ToolInvoker.
	ErrToolsNotConfigured = errors.New("tool invocation is not configured")
)

// Ошибки ожидания ввода.
var (
	// ErrInputAlreadyPending — для шага уже есть ожидающий запрос ввода.
	ErrInputAlreadyPending = errors.New("input already pending for step")
)

// Сообщения об ошибках в StepResult.
const (
	msgCancelled     = "cancelled"
	msgInputTimeout  = "User input timeout"
	msgToolFailedFmt = "tool %s failed"
	msgNotAnArrayFmt = "variable %s is not an array"
	msgUnknownSubFmt = "unknown substep: %s"
	msgStepPanicFmt  = "step panicked: %v"
	msgParallelFmt   = "%d of %d parallel steps failed"
	msgIterationsFmt = "%d of %d iterations failed"
)

// ToolResponse — ответ инструмента.
type ToolResponse struct {
	// Success — false означает логическую ошибку инструмента.
	Success bool `json:"success"`

	// Result — полезная нагрузка ответа.
	Result any `json:"result,omitempty"`

	// Error — описание ошибки при Success=false.
	Error string `json:"error,omitempty"`
}

// ToolInvoker вызывает именованный инструмент.
//
// params уже прошли подстановку переменных.
// Возвращаемая error — инфраструктурная ошибка; для шага она равнозначна
// неуспешному ответу.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, name string, params map[string]any) (*ToolResponse, error)
}

// ModelFunc вызывает языковую модель.
// systemPrompt может быть пустым.
type ModelFunc func(ctx context.Context, prompt, systemPrompt string) (string, error)
