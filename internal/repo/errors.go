package repo

import "errors"

var (
	// ErrNotFound — task с таким ID нет.
	ErrNotFound = errors.New("task not found")

	// ErrAlreadyExists — task с таким ID уже сохранён.
	ErrAlreadyExists = errors.New("task already exists")

	// ErrInvalidState — статус task не допускает операцию:
	// Claim не-pending task или смена статуса завершённого.
	ErrInvalidState = errors.New("task status does not allow operation")
)
