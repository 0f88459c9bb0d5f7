package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepResult — итог одного выполнения шага.
//
// После создания не изменяется. Добавляется в упорядоченный список
// результатов и индексируется в TaskContext по StepID.
type StepResult struct {
	StepID string       `json:"step_id"`
	Status ResultStatus `json:"status"`

	// Data — структурированный результат шага.
	Data any `json:"data,omitempty"`

	// Error — текст ошибки для failed.
	Error string `json:"error,omitempty"`

	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`

	// Attempts — номер попытки (заполняется для шагов с retry).
	Attempts int `json:"attempts,omitempty"`
}

// IsCompleted возвращает true для успешного результата.
func (r *StepResult) IsCompleted() bool {
	return r != nil && r.Status == ResultCompleted
}

// Completed создаёт успешный результат.
func Completed(stepID string, data any, started time.Time) *StepResult {
	now := time.Now()
	return &StepResult{
		StepID:      stepID,
		Status:      ResultCompleted,
		Data:        data,
		Duration:    now.Sub(started),
		CompletedAt: now,
	}
}

// Failed создаёт результат с ошибкой.
func Failed(stepID string, errMsg string, started time.Time) *StepResult {
	now := time.Now()
	return &StepResult{
		StepID:      stepID,
		Status:      ResultFailed,
		Error:       errMsg,
		Duration:    now.Sub(started),
		CompletedAt: now,
	}
}

// TaskResult — итоговая сводка по task.
//
// Создаётся ровно один раз на выполнение и возвращается в Task Queue.
type TaskResult struct {
	TaskID uuid.UUID  `json:"task_id"`
	Status TaskStatus `json:"status"`

	// Data — data последнего успешного шага, у которого она есть.
	Data any `json:"data,omitempty"`

	Error string `json:"error,omitempty"`

	CompletedSteps int `json:"completed_steps"`
	TotalSteps     int `json:"total_steps"`

	// StepResults — все результаты в порядке получения, включая повторы.
	StepResults []*StepResult `json:"step_results"`

	// DeferredSteps — шаги, пропущенные при обходе из-за невыполненных зависимостей.
	DeferredSteps []string `json:"deferred_steps,omitempty"`

	Context *TaskContext `json:"context,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// LastData возвращает data последнего completed результата с данными.
func LastData(results []*StepResult) any {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.IsCompleted() && r.Data != nil {
			return r.Data
		}
	}
	return nil
}

// CountCompleted считает успешные результаты.
func CountCompleted(results []*StepResult) int {
	n := 0
	for _, r := range results {
		if r.IsCompleted() {
			n++
		}
	}
	return n
}
