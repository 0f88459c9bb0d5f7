package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — именованная единица работы: упорядоченный список шагов
// и начальный набор переменных.
//
// Task создаётся и ставится в очередь внешним Task Queue.
// На время выполнения им владеет Engine: он меняет Status,
// CurrentStepIndex и Progress.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id" yaml:"id"`

	// Name — имя task (например, "morning-briefing").
	Name string `json:"name" yaml:"name"`

	// Steps — шаги в порядке выполнения.
	Steps []Step `json:"steps" yaml:"steps"`

	// InitialContext — переменные, которыми засевается TaskContext.
	InitialContext map[string]any `json:"initial_context,omitempty" yaml:"initial_context,omitempty"`

	// SessionID — идентификатор пользовательской сессии.
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`

	Status TaskStatus `json:"status" yaml:"status,omitempty"`

	// CurrentStepIndex — индекс шага, который сейчас обрабатывается.
	// Двигается только вперёд, кроме повторов при retry.
	CurrentStepIndex int `json:"current_step_index" yaml:"-"`

	// Progress — процент выполнения (0..100).
	Progress float64 `json:"progress" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// NewTask создаёт task в статусе pending.
func NewTask(name string, steps []Step, initial map[string]any) *Task {
	return &Task{
		ID:             uuid.New(),
		Name:           name,
		Steps:          steps,
		InitialContext: initial,
		Status:         TaskStatusPending,
		CreatedAt:      time.Now(),
	}
}

// Normalize заполняет пустые поля после декодирования определения.
func (t *Task) Normalize() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.InitialContext == nil {
		t.InitialContext = make(map[string]any)
	}
}

// FindStep ищет шаг верхнего уровня по ID.
func (t *Task) FindStep(id string) *Step {
	for i := range t.Steps {
		if t.Steps[i].ID == id {
			return &t.Steps[i]
		}
	}
	return nil
}
