package queue

import "errors"

// Ошибки воркера.
var (
	// ErrTaskNotFound — task не найден в БД.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotPending — task уже забран другим экземпляром или завершён.
	ErrTaskNotPending = errors.New("task is not pending")

	// ErrUnknownAction — неизвестная команда управления.
	ErrUnknownAction = errors.New("unknown control action")

	// ErrInvalidInput — ответ wait шагу без task_id или step_id.
	ErrInvalidInput = errors.New("invalid input command")
)
