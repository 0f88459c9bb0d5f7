package orchestrator

import "errors"

// Ошибки движка.
var (
	// ErrTaskAlreadyActive — task с таким ID уже выполняется.
	ErrTaskAlreadyActive = errors.New("task already being executed")

	// ErrNoExecutor — Engine создан без StepRunner.
	ErrNoExecutor = errors.New("step executor is not configured")
)

// Сообщения об ошибках в TaskResult.
const (
	msgCancelled         = "cancelled"
	msgCancelledInPause  = "cancelled while paused"
	msgEnginePanicFormat = "engine panicked: %v"
)
