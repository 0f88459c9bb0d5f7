package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/orchestrator"
	"github.com/shaiso/conductor/internal/repo"
)

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	SessionID        string             `json:"session_id,omitempty"`
	Status           domain.TaskStatus  `json:"status"`
	CurrentStepIndex int                `json:"current_step_index"`
	Progress         float64            `json:"progress"`
	TotalSteps       int                `json:"total_steps"`
	Steps            []domain.Step      `json:"steps,omitempty"`
	Result           *domain.TaskResult `json:"result,omitempty"`
	Error            string             `json:"error,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	FinishedAt       *time.Time         `json:"finished_at,omitempty"`

	// Live — состояние из движка, если task выполняется в этом экземпляре.
	Live *orchestrator.TaskStats `json:"live,omitempty"`
}

// TaskFromRecord конвертирует repo.TaskRecord в TaskResponse.
func TaskFromRecord(rec *repo.TaskRecord, withSteps bool) TaskResponse {
	resp := TaskResponse{
		ID:               rec.Task.ID,
		Name:             rec.Task.Name,
		SessionID:        rec.Task.SessionID,
		Status:           rec.Task.Status,
		CurrentStepIndex: rec.Task.CurrentStepIndex,
		Progress:         rec.Task.Progress,
		TotalSteps:       len(rec.Task.Steps),
		Result:           rec.Result,
		Error:            rec.Error,
		CreatedAt:        rec.Task.CreatedAt,
		StartedAt:        rec.StartedAt,
		FinishedAt:       rec.FinishedAt,
	}
	if withSteps {
		resp.Steps = rec.Task.Steps
	}
	return resp
}

// ControlResponse — ответ на pause/resume/cancel.
type ControlResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Action string    `json:"action"`

	// Applied — команда применена этим экземпляром.
	// false означает, что команда разослана другим экземплярам.
	Applied bool `json:"applied"`
}

// Input DTOs

// ProvideInputRequest — ответ пользователя для wait шага.
type ProvideInputRequest struct {
	Value any `json:"value"`
}

// ProvideInputResponse — результат provideInput.
type ProvideInputResponse struct {
	TaskID   *uuid.UUID `json:"task_id,omitempty"`
	StepID   string     `json:"step_id"`
	Accepted bool       `json:"accepted"`

	// Forwarded — ответ разослан через conductor.control:
	// wait шаг ждёт ввода в другом экземпляре.
	Forwarded bool `json:"forwarded"`
}
