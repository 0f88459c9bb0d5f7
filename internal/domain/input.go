package domain

import (
	"time"

	"github.com/google/uuid"
)

// InputRequest — ожидающий пользовательского ввода wait шаг.
//
// Публикуется как событие input.pending; UI показывает Prompt
// и позже отвечает через provideInput(StepID, value).
type InputRequest struct {
	TaskID    uuid.UUID `json:"task_id"`
	StepID    string    `json:"step_id"`
	Prompt    string    `json:"prompt"`
	InputType InputType `json:"input_type"`
	Choices   []string  `json:"choices,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
