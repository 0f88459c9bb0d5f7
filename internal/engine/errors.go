package engine

import "errors"

// Ошибки валидации определения task.
var (
	// ErrEmptyStepID — шаг не имеет ID.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrUnknownStepType — неизвестный тип шага.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrMissingDependency — шаг зависит от несуществующего шага.
	ErrMissingDependency = errors.New("step depends on unknown step")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — шаг зависит от самого себя.
	ErrSelfDependency = errors.New("step depends on itself")

	// ErrForwardDependency — зависимость объявлена позже зависимого шага.
	// Однопроходный обход никогда не выполнит такой шаг.
	ErrForwardDependency = errors.New("step depends on a later step")

	// ErrMissingSubstep — parallel или loop ссылается на несуществующий substep.
	ErrMissingSubstep = errors.New("step references unknown substep")

	// ErrInvalidConfig — обязательное поле конфигурации не заполнено.
	ErrInvalidConfig = errors.New("invalid step config")
)

// Ошибки разбора определений.
var (
	// ErrUnsupportedFormat — неизвестный формат файла определения.
	ErrUnsupportedFormat = errors.New("unsupported definition format")

	// ErrDecode — определение не удалось декодировать.
	ErrDecode = errors.New("decode task definition")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  string // ID шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return "step " + e.StepID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
