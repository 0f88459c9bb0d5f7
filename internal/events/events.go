// Package events описывает исходящие уведомления движка.
//
// Engine и Step Executor сообщают о ходе выполнения через Sink:
// начало и завершение шагов, прогресс, ожидание ввода и итог task.
// Реализации Sink живут рядом с транспортом: mq.EventSink публикует
// в RabbitMQ, telemetry.Metrics обновляет Prometheus, LogSink пишет в slog.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/domain"
)

// Type — тип события.
type Type string

// Типы событий.
const (
	StepStarted   Type = "step.started"
	StepCompleted Type = "step.completed"
	TaskProgress  Type = "task.progress"
	InputPending  Type = "input.pending"
	TaskCompleted Type = "task.completed"
)

// Event — одно уведомление о ходе выполнения task.
type Event struct {
	ID     string    `json:"id"`
	Type   Type      `json:"type"`
	TaskID uuid.UUID `json:"task_id"`
	StepID string    `json:"step_id,omitempty"`

	// StepKind — тип шага для step.* событий.
	StepKind domain.StepKind `json:"step_kind,omitempty"`

	// Progress и StepIndex — процент выполнения и индекс шага для task.progress.
	Progress  float64 `json:"progress,omitempty"`
	StepIndex int     `json:"step_index,omitempty"`

	Result     *domain.StepResult   `json:"result,omitempty"`
	Input      *domain.InputRequest `json:"input,omitempty"`
	TaskResult *domain.TaskResult   `json:"task_result,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// New создаёт событие с ID и временем.
func New(typ Type, taskID uuid.UUID) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		TaskID:    taskID,
		Timestamp: time.Now(),
	}
}

// Sink принимает события.
//
// Emit не должен блокироваться надолго: он вызывается из цикла движка.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc — адаптер функции к Sink.
type SinkFunc func(ctx context.Context, ev Event)

// Emit вызывает f.
func (f SinkFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Nop — Sink, который ничего не делает.
type Nop struct{}

// Emit ничего не делает.
func (Nop) Emit(context.Context, Event) {}

// Multi рассылает событие каждому Sink по порядку.
type Multi []Sink

// Emit отправляет событие во все вложенные Sink.
func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// NewMulti собирает Multi, отбрасывая nil.
func NewMulti(sinks ...Sink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// LogSink пишет события в slog.
type LogSink struct {
	Logger *slog.Logger
}

// Emit логирует событие.
func (s LogSink) Emit(ctx context.Context, ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"event", ev.Type, "task_id", ev.TaskID}
	if ev.StepID != "" {
		attrs = append(attrs, "step_id", ev.StepID)
	}

	switch ev.Type {
	case StepCompleted:
		if ev.Result != nil {
			attrs = append(attrs, "status", ev.Result.Status, "duration", ev.Result.Duration)
			if ev.Result.Error != "" {
				attrs = append(attrs, "error", ev.Result.Error)
			}
		}
	case TaskProgress:
		attrs = append(attrs, "progress", ev.Progress)
	case InputPending:
		if ev.Input != nil {
			attrs = append(attrs, "prompt", ev.Input.Prompt, "expires_at", ev.Input.ExpiresAt)
		}
	case TaskCompleted:
		if ev.TaskResult != nil {
			attrs = append(attrs,
				"status", ev.TaskResult.Status,
				"completed_steps", ev.TaskResult.CompletedSteps,
				"total_steps", ev.TaskResult.TotalSteps,
			)
		}
	}

	logger.DebugContext(ctx, "task event", attrs...)
}

// Recorder запоминает события. Используется в тестах и в CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit сохраняет событие.
func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events возвращает копию сохранённых событий.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType возвращает события указанного типа.
func (r *Recorder) OfType(typ Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
