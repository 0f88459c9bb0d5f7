package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/repo"
	"github.com/shaiso/conductor/internal/telemetry"
)

// handleTaskRunnable обрабатывает сообщение из очереди tasks.runnable.
// Блокируется, пока не освободится слот: сообщение остаётся неподтверждённым.
func (w *Worker) handleTaskRunnable(ctx context.Context, delivery *mq.Delivery) error {
	if delivery.Message.Type != mq.MessageTypeTaskRunnable {
		return fmt.Errorf("%w: %s", mq.ErrUnexpectedMessage, delivery.Message.Type)
	}

	payload, err := mq.ParsePayload[mq.TaskRunnablePayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.runnable payload", "error", err)
		return err
	}

	w.logger.Debug("received task.runnable event", "task_id", payload.TaskID)

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	if err := w.processTask(ctx, payload.TaskID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskNotPending) {
			w.logger.Debug("task not processed", "task_id", payload.TaskID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process task", "task_id", payload.TaskID, "error", err)
		return err
	}

	return nil
}

// processTask забирает task и запускает его в отдельной горутине.
// Вызывающий уже занял слот семафора; processTask освобождает его.
func (w *Worker) processTask(ctx context.Context, taskID uuid.UUID) error {
	rec, err := w.store.Claim(ctx, taskID)
	if err != nil {
		w.sem.Release(1)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		case errors.Is(err, repo.ErrInvalidState):
			return ErrTaskNotPending
		default:
			return fmt.Errorf("claim task: %w", err)
		}
	}

	task := rec.Task
	logger := telemetry.WithTaskID(w.logger, task.ID.String())
	logger.Info("task claimed", "name", task.Name, "steps", len(task.Steps))

	w.tasksWg.Add(1)
	go func() {
		defer w.tasksWg.Done()
		defer w.sem.Release(1)

		result := w.runner.ExecuteTask(ctx, &task)
		logger.Info("task finished",
			"status", result.Status,
			"completed_steps", result.CompletedSteps,
			"duration", result.Duration,
		)
	}()

	return nil
}

// handleControl применяет pause/resume/cancel и ответы wait шагам.
// Команда приходит всем экземплярам, применяет её тот, у кого task выполняется.
func (w *Worker) handleControl(ctx context.Context, delivery *mq.Delivery) error {
	if delivery.Message.Type != mq.MessageTypeTaskControl {
		return fmt.Errorf("%w: %s", mq.ErrUnexpectedMessage, delivery.Message.Type)
	}

	payload, err := mq.ParsePayload[mq.TaskControlPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.control payload", "error", err)
		return err
	}

	applied, err := w.applyControl(payload)
	if err != nil {
		w.logger.Warn("control rejected", "task_id", payload.TaskID, "action", payload.Action, "error", err)
		return nil
	}
	if !applied {
		return nil
	}

	w.logger.Info("control applied", "task_id", payload.TaskID, "action", payload.Action, "step_id", payload.StepID)
	if status, ok := payload.Action.ResultingStatus(); ok {
		if err := w.store.UpdateStatus(ctx, payload.TaskID, status); err != nil {
			w.logger.Warn("failed to store task status", "task_id", payload.TaskID, "status", status, "error", err)
		}
	}
	return nil
}

// applyControl вызывает соответствующий метод движка или executor.
// Возвращает false, если task выполняется (или ждёт ввода) не в этом экземпляре.
func (w *Worker) applyControl(p mq.TaskControlPayload) (bool, error) {
	switch p.Action {
	case mq.ControlPause:
		return w.runner.PauseTask(p.TaskID), nil
	case mq.ControlResume:
		return w.runner.ResumeTask(p.TaskID), nil
	case mq.ControlCancel:
		return w.runner.CancelTask(p.TaskID), nil
	case mq.ControlProvideInput:
		if p.TaskID == uuid.Nil || p.StepID == "" {
			return false, fmt.Errorf("%w: task_id and step_id required", ErrInvalidInput)
		}
		return w.inputs != nil && w.inputs.ProvideInput(p.TaskID, p.StepID, p.Value), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownAction, p.Action)
	}
}
