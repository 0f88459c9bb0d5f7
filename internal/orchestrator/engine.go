package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
	"github.com/shaiso/conductor/internal/telemetry"
)

// StepRunner выполняет один шаг. Реализуется steps.Executor.
//
// Возвращаемая error — ошибка конфигурации, завершающая task.
type StepRunner interface {
	Execute(ctx context.Context, task *domain.Task, step *domain.Step, tc *domain.TaskContext) (*domain.StepResult, error)
}

// Completer получает итог task (Task Queue). Реализуется repo.TaskRepo.
type Completer interface {
	CompleteTask(ctx context.Context, result *domain.TaskResult) error
}

// Engine выполняет task от pending/paused до completed или failed.
//
// Один Engine обслуживает много task одновременно: каждый ExecuteTask
// работает в своей горутине со своим TaskContext и токеном отмены.
type Engine struct {
	executor  StepRunner
	events    events.Sink
	completer Completer
	logger    *slog.Logger

	// Active tasks — task в процессе выполнения (taskID → state)
	active map[uuid.UUID]*TaskState
	mu     sync.RWMutex
}

// Config — конфигурация Engine.
type Config struct {
	Executor StepRunner

	// Events — получатель событий (default: ничего не делает).
	Events events.Sink

	// Completer — опционально, получает TaskResult после завершения.
	Completer Completer

	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	sink := cfg.Events
	if sink == nil {
		sink = events.Nop{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		executor:  cfg.Executor,
		events:    sink,
		completer: cfg.Completer,
		logger:    logger,
		active:    make(map[uuid.UUID]*TaskState),
	}
}

// run — состояние одного вызова ExecuteTask.
type run struct {
	task     *domain.Task
	state    *TaskState
	tc       *domain.TaskContext
	results  []*domain.StepResult
	deferred []string
	attempts map[string]int
	started  time.Time
}

// ExecuteTask выполняет task и возвращает итог.
//
// Никогда не паникует и не возвращает ошибку: любой сбой отражается
// в TaskResult со статусом failed. Итог также передаётся в Completer
// и публикуется событием task.completed.
func (e *Engine) ExecuteTask(ctx context.Context, task *domain.Task) (result *domain.TaskResult) {
	task.Normalize()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		task:     task,
		state:    newTaskState(task, cancel),
		tc:       domain.NewTaskContext(task.InitialContext, task.SessionID),
		attempts: make(map[string]int),
		started:  time.Now(),
	}

	logger := telemetry.WithTaskID(e.logger, task.ID.String())

	if err := e.addActive(r.state); err != nil {
		logger.Warn("task rejected", "error", err)
		return rejected(task, err, r.started)
	}
	defer e.removeActive(task.ID)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("engine panicked", "panic", p)
			result = r.finish(domain.TaskStatusFailed, fmt.Sprintf(msgEnginePanicFormat, p))
		}
		e.complete(ctx, logger, result)
	}()

	logger.Info("task started", "name", task.Name, "steps", len(task.Steps))

	if task.Status != domain.TaskStatusPaused {
		task.Status = domain.TaskStatusRunning
	}

	if status, errMsg := e.runSteps(ctx, logger, r); status != domain.TaskStatusCompleted {
		return r.finish(status, errMsg)
	}

	return r.finish(domain.TaskStatusCompleted, "")
}

// runSteps обходит список шагов. Возвращает терминальный статус и текст ошибки.
func (e *Engine) runSteps(ctx context.Context, logger *slog.Logger, r *run) (domain.TaskStatus, string) {
	task := r.task
	total := len(task.Steps)

	for i := 0; i < total; {
		if resumed := r.state.pauseSignal(); resumed != nil {
			task.Status = domain.TaskStatusPaused
			logger.Info("task paused", "step_index", i)

			select {
			case <-resumed:
				logger.Info("task resumed", "step_index", i)
				task.Status = domain.TaskStatusRunning
			case <-ctx.Done():
				logger.Info("task cancelled while paused", "step_index", i)
				return domain.TaskStatusFailed, msgCancelledInPause
			}
		}

		if ctx.Err() != nil {
			return domain.TaskStatusFailed, msgCancelled
		}

		step := &task.Steps[i]
		task.CurrentStepIndex = i
		r.state.advance(i, task.Progress)

		if !r.tc.DependenciesMet(step.DependsOn) {
			logger.Warn("step deferred: dependencies not completed",
				"step_id", step.ID, "depends_on", step.DependsOn)
			step.Status = domain.StepStatusDeferred
			r.deferred = append(r.deferred, step.ID)
			i++
			continue
		}

		step.Status = domain.StepStatusRunning
		e.emitStep(ctx, events.StepStarted, task, step, nil)

		res, err := e.executor.Execute(ctx, task, step, r.tc)
		if err != nil {
			logger.Error("step configuration fault", "step_id", step.ID, "error", err)
			step.Status = domain.StepStatusFailed
			return domain.TaskStatusFailed, err.Error()
		}

		if step.ErrorStrategy == domain.ErrorStrategyRetry {
			r.attempts[step.ID]++
			res.Attempts = r.attempts[step.ID]
		}

		r.tc.RecordResult(res)
		r.results = append(r.results, res)
		e.emitStep(ctx, events.StepCompleted, task, step, res)

		if !res.IsCompleted() {
			switch step.ErrorStrategy {
			case domain.ErrorStrategyRetry:
				if res.Attempts < step.RetryLimit() {
					logger.Warn("step failed, retrying",
						"step_id", step.ID, "attempt", res.Attempts,
						"max_retries", step.RetryLimit(), "error", res.Error)
					step.Status = domain.StepStatusPending
					continue
				}
				logger.Error("step failed, retries exhausted",
					"step_id", step.ID, "attempts", res.Attempts, "error", res.Error)
				step.Status = domain.StepStatusFailed
				return domain.TaskStatusFailed, res.Error

			case domain.ErrorStrategySkip:
				logger.Warn("step failed, skipping", "step_id", step.ID, "error", res.Error)
				step.Status = domain.StepStatusSkipped

			default:
				logger.Error("step failed", "step_id", step.ID, "error", res.Error)
				step.Status = domain.StepStatusFailed
				return domain.TaskStatusFailed, res.Error
			}
		} else {
			step.Status = domain.StepStatusCompleted
		}

		task.Progress = float64(i+1) / float64(total) * 100
		r.state.advance(i, task.Progress)
		e.emitProgress(ctx, task)

		i++
	}

	return domain.TaskStatusCompleted, ""
}

// finish собирает TaskResult.
func (r *run) finish(status domain.TaskStatus, errMsg string) *domain.TaskResult {
	now := time.Now()

	r.task.Status = status
	if status == domain.TaskStatusCompleted {
		r.task.Progress = 100
	}

	res := &domain.TaskResult{
		TaskID:         r.task.ID,
		Status:         status,
		Error:          errMsg,
		CompletedSteps: domain.CountCompleted(r.results),
		TotalSteps:     len(r.task.Steps),
		StepResults:    r.results,
		DeferredSteps:  r.deferred,
		Context:        r.tc,
		StartedAt:      r.started,
		FinishedAt:     now,
		Duration:       now.Sub(r.started),
	}
	if status == domain.TaskStatusCompleted {
		res.Data = domain.LastData(r.results)
	}
	return res
}

// rejected — итог для task, который не был запущен.
// Сам task не меняется: он может выполняться в другом вызове.
func rejected(task *domain.Task, err error, started time.Time) *domain.TaskResult {
	now := time.Now()
	return &domain.TaskResult{
		TaskID:     task.ID,
		Status:     domain.TaskStatusFailed,
		Error:      err.Error(),
		TotalSteps: len(task.Steps),
		StartedAt:  started,
		FinishedAt: now,
		Duration:   now.Sub(started),
	}
}

// complete публикует итог и передаёт его в Completer.
// Отмена task не должна мешать сохранению итога.
func (e *Engine) complete(ctx context.Context, logger *slog.Logger, result *domain.TaskResult) {
	ctx = context.WithoutCancel(ctx)

	ev := events.New(events.TaskCompleted, result.TaskID)
	ev.TaskResult = result
	e.events.Emit(ctx, ev)

	if e.completer != nil {
		if err := e.completer.CompleteTask(ctx, result); err != nil {
			logger.Error("failed to complete task", "error", err)
		}
	}

	logger.Info("task finished",
		"status", result.Status,
		"completed_steps", result.CompletedSteps,
		"total_steps", result.TotalSteps,
		"duration", result.Duration,
	)
}

func (e *Engine) emitStep(ctx context.Context, typ events.Type, task *domain.Task, step *domain.Step, res *domain.StepResult) {
	ev := events.New(typ, task.ID)
	ev.StepID = step.ID
	ev.StepKind = step.Kind()
	ev.Result = res
	e.events.Emit(ctx, ev)
}

func (e *Engine) emitProgress(ctx context.Context, task *domain.Task) {
	ev := events.New(events.TaskProgress, task.ID)
	ev.Progress = task.Progress
	ev.StepIndex = task.CurrentStepIndex
	e.events.Emit(ctx, ev)
}

// CancelTask отменяет выполняющийся task.
// Возвращает false, если task не выполняется.
func (e *Engine) CancelTask(id uuid.UUID) bool {
	state := e.getActive(id)
	if state == nil {
		return false
	}
	e.logger.Info("cancelling task", "task_id", id)
	state.cancel()
	return true
}

// PauseTask ставит task на паузу перед следующим шагом.
// Текущий шаг доигрывается до конца.
func (e *Engine) PauseTask(id uuid.UUID) bool {
	state := e.getActive(id)
	if state == nil {
		return false
	}
	if state.pause() {
		e.logger.Info("pause requested", "task_id", id)
	}
	return true
}

// ResumeTask снимает паузу.
func (e *Engine) ResumeTask(id uuid.UUID) bool {
	state := e.getActive(id)
	if state == nil {
		return false
	}
	state.resume()
	return true
}

// ActiveTasks возвращает ID выполняющихся task.
func (e *Engine) ActiveTasks() []uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

// Stats возвращает снимок выполнения task.
func (e *Engine) Stats(id uuid.UUID) (TaskStats, bool) {
	state := e.getActive(id)
	if state == nil {
		return TaskStats{}, false
	}
	return state.Stats(), true
}

func (e *Engine) getActive(id uuid.UUID) *TaskState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active[id]
}

func (e *Engine) addActive(state *TaskState) error {
	if e.executor == nil {
		return ErrNoExecutor
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.active[state.taskID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyActive, state.taskID)
	}
	e.active[state.taskID] = state
	return nil
}

func (e *Engine) removeActive(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, id)
}
