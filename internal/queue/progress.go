package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/conductor/internal/events"
)

const progressWriteTimeout = 5 * time.Second

// ProgressSink сохраняет task.progress в хранилище,
// чтобы GET /tasks/{id} показывал ход выполнения.
type ProgressSink struct {
	store  TaskStore
	logger *slog.Logger
}

// NewProgressSink создаёт ProgressSink.
func NewProgressSink(store TaskStore, logger *slog.Logger) *ProgressSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressSink{store: store, logger: logger}
}

// Emit реализует events.Sink.
func (s *ProgressSink) Emit(ctx context.Context, ev events.Event) {
	if ev.Type != events.TaskProgress {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressWriteTimeout)
	defer cancel()

	if err := s.store.UpdateProgress(ctx, ev.TaskID, ev.StepIndex, ev.Progress); err != nil {
		s.logger.Warn("failed to store task progress", "task_id", ev.TaskID, "progress", ev.Progress, "error", err)
	}
}
