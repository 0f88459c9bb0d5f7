package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/engine"
	"github.com/shaiso/conductor/internal/events"
	"github.com/shaiso/conductor/internal/telemetry"
)

// DefaultInputTimeout — сколько wait шаг ждёт ввода пользователя.
const DefaultInputTimeout = 5 * time.Minute

// Executor выполняет ровно один шаг.
//
// Любая ошибка шага возвращается как failed StepResult.
// Второе возвращаемое значение — только ошибки конфигурации
// (ErrUnknownStepKind, ErrModelNotConfigured, ErrToolsNotConfigured),
// которые движок превращает в ошибку всего task.
type Executor struct {
	tools        ToolInvoker
	inputs       *InputBroker
	events       events.Sink
	logger       *slog.Logger
	inputTimeout time.Duration

	modelMu sync.RWMutex
	model   ModelFunc
}

// Config — конфигурация Executor.
type Config struct {
	// Tools — коллаборатор для tool шагов.
	Tools ToolInvoker

	// Inputs — реестр ожидающих ввода wait шагов (если nil — создаётся новый).
	Inputs *InputBroker

	// Events — получатель события input.pending.
	Events events.Sink

	// InputTimeout — таймаут wait шага (default: 5m).
	InputTimeout time.Duration

	// Model — опционально; можно задать позже через SetModel.
	Model ModelFunc

	Logger *slog.Logger
}

// NewExecutor создаёт новый Executor.
func NewExecutor(cfg Config) *Executor {
	inputs := cfg.Inputs
	if inputs == nil {
		inputs = NewInputBroker()
	}

	sink := cfg.Events
	if sink == nil {
		sink = events.Nop{}
	}

	timeout := cfg.InputTimeout
	if timeout <= 0 {
		timeout = DefaultInputTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		tools:        cfg.Tools,
		inputs:       inputs,
		events:       sink,
		logger:       logger,
		inputTimeout: timeout,
		model:        cfg.Model,
	}
}

// SetModel регистрирует функцию вызова модели.
// Должна быть вызвана до первого llm шага.
func (e *Executor) SetModel(fn ModelFunc) {
	e.modelMu.Lock()
	defer e.modelMu.Unlock()
	e.model = fn
}

func (e *Executor) getModel() ModelFunc {
	e.modelMu.RLock()
	defer e.modelMu.RUnlock()
	return e.model
}

// Inputs возвращает реестр ожидающих ввода шагов.
func (e *Executor) Inputs() *InputBroker {
	return e.inputs
}

// ProvideInput передаёт значение ожидающему wait шагу.
// taskID может быть uuid.Nil, если stepID однозначен.
// Возвращает false, если такого ожидания нет.
func (e *Executor) ProvideInput(taskID uuid.UUID, stepID string, value any) bool {
	return e.inputs.Provide(taskID, stepID, value)
}

// Execute выполняет шаг в рамках task.
func (e *Executor) Execute(ctx context.Context, task *domain.Task, step *domain.Step, tc *domain.TaskContext) (result *domain.StepResult, err error) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger := telemetry.WithStepID(telemetry.WithTaskID(e.logger, task.ID.String()), step.ID)
			logger.Error("step panicked", "panic", r)
			result, err = domain.Failed(step.ID, fmt.Sprintf(msgStepPanicFmt, r), started), nil
		}
	}()

	switch cfg := step.Config.(type) {
	case *domain.ToolConfig:
		return e.executeTool(ctx, step, cfg, tc, started)
	case *domain.LLMConfig:
		return e.executeLLM(ctx, step, cfg, tc, started)
	case *domain.WaitConfig:
		return e.executeWait(ctx, task, step, cfg, tc, started), nil
	case *domain.ConditionConfig:
		return e.executeCondition(step, cfg, tc, started), nil
	case *domain.ParallelConfig:
		return e.executeParallel(ctx, task, step, cfg, tc, started)
	case *domain.LoopConfig:
		return e.executeLoop(ctx, task, step, cfg, tc, started)
	case *domain.DelayConfig:
		return executeDelay(ctx, step, cfg, started), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepKind, step.Kind())
	}
}

// executeTool вызывает инструмент с подставленными параметрами.
func (e *Executor) executeTool(ctx context.Context, step *domain.Step, cfg *domain.ToolConfig, tc *domain.TaskContext, started time.Time) (*domain.StepResult, error) {
	if e.tools == nil {
		return nil, ErrToolsNotConfigured
	}

	params := engine.InterpolateParams(cfg.Params, tc)

	resp, err := e.tools.InvokeTool(ctx, cfg.Tool, params)
	if err != nil {
		return domain.Failed(step.ID, err.Error(), started), nil
	}
	if resp == nil || !resp.Success {
		msg := fmt.Sprintf(msgToolFailedFmt, cfg.Tool)
		if resp != nil && resp.Error != "" {
			msg = resp.Error
		}
		return domain.Failed(step.ID, msg, started), nil
	}

	if cfg.OutputVariable != "" {
		tc.Set(cfg.OutputVariable, resp.Result)
	}

	return domain.Completed(step.ID, resp.Result, started), nil
}

// executeLLM вызывает модель и, если задано, сохраняет ответ в переменную.
func (e *Executor) executeLLM(ctx context.Context, step *domain.Step, cfg *domain.LLMConfig, tc *domain.TaskContext, started time.Time) (*domain.StepResult, error) {
	model := e.getModel()
	if model == nil {
		return nil, ErrModelNotConfigured
	}

	prompt := engine.Interpolate(cfg.Prompt, tc)
	system := engine.Interpolate(cfg.SystemPrompt, tc)

	out, err := model(ctx, prompt, system)
	if err != nil {
		return domain.Failed(step.ID, err.Error(), started), nil
	}

	if cfg.OutputVariable != "" {
		tc.Set(cfg.OutputVariable, out)
	}

	return domain.Completed(step.ID, out, started), nil
}

// executeCondition вычисляет условие. Сам шаг не меняет порядок выполнения:
// выбранная ветка возвращается как данные.
func (e *Executor) executeCondition(step *domain.Step, cfg *domain.ConditionConfig, tc *domain.TaskContext, started time.Time) *domain.StepResult {
	ok := engine.EvaluateCondition(cfg.Expression, tc)

	branch, next := "else", cfg.ElseStep
	if ok {
		branch, next = "then", cfg.ThenStep
	}

	return domain.Completed(step.ID, map[string]any{
		"result":    ok,
		"branch":    branch,
		"next_step": next,
	}, started)
}

// executeDelay ждёт указанное время. Поддерживает отмену через context.
func executeDelay(ctx context.Context, step *domain.Step, cfg *domain.DelayConfig, started time.Time) *domain.StepResult {
	duration := time.Duration(cfg.DurationMs) * time.Millisecond

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return domain.Failed(step.ID, msgCancelled, started)
	case <-timer.C:
		return domain.Completed(step.ID, map[string]any{
			"duration_ms": cfg.DurationMs,
		}, started)
	}
}
