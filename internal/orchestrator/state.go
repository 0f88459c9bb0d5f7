package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/domain"
)

// TaskState — состояние выполняющегося task в памяти.
//
// Создаётся в начале ExecuteTask и удаляется при выходе из него.
// Через TaskState внешние вызовы (CancelTask, PauseTask, ResumeTask)
// управляют циклом движка, не трогая сам domain.Task.
type TaskState struct {
	taskID uuid.UUID
	total  int
	cancel context.CancelFunc

	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
	index    int
	progress float64
}

// newTaskState создаёт состояние. paused=true — task пришёл уже на паузе.
func newTaskState(task *domain.Task, cancel context.CancelFunc) *TaskState {
	s := &TaskState{
		taskID: task.ID,
		total:  len(task.Steps),
		cancel: cancel,
	}
	if task.Status == domain.TaskStatusPaused {
		s.pause()
	}
	return s
}

// pause ставит task на паузу. Возвращает false, если пауза уже стоит.
func (s *TaskState) pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return false
	}
	s.paused = true
	s.resumeCh = make(chan struct{})
	return true
}

// resume снимает паузу и будит ожидающий цикл.
func (s *TaskState) resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return false
	}
	s.paused = false
	close(s.resumeCh)
	s.resumeCh = nil
	return true
}

// pauseSignal возвращает канал, который закроется при resume.
// nil — паузы нет.
func (s *TaskState) pauseSignal() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return nil
	}
	return s.resumeCh
}

// advance фиксирует позицию и прогресс.
func (s *TaskState) advance(index int, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
	s.progress = progress
}

// Stats возвращает снимок состояния.
func (s *TaskState) Stats() TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return TaskStats{
		TaskID:           s.taskID,
		TotalSteps:       s.total,
		CurrentStepIndex: s.index,
		Progress:         s.progress,
		Paused:           s.paused,
	}
}

// TaskStats — снимок выполнения task.
type TaskStats struct {
	TaskID           uuid.UUID `json:"task_id"`
	TotalSteps       int       `json:"total_steps"`
	CurrentStepIndex int       `json:"current_step_index"`
	Progress         float64   `json:"progress"`
	Paused           bool      `json:"paused"`
}
