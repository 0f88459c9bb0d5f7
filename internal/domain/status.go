package domain

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	pending → running → completed
//	              ↕    ↘ failed
//	            paused
//
// Отмена не является отдельным статусом: отменённый task завершается
// со статусом failed и сообщением об отмене.
type TaskStatus string

const (
	// TaskStatusPending — task создан и ожидает запуска.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusRunning — task выполняется движком.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusPaused — task приостановлен извне и ждёт resume.
	TaskStatusPaused TaskStatus = "paused"

	// TaskStatusCompleted — все шаги пройдены.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed — task завершился с ошибкой или был отменён.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// StepStatus — статус отдельного шага внутри task.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"

	// StepStatusSkipped — шаг упал, но error_strategy=skip.
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusDeferred — зависимости шага не были выполнены к моменту обхода.
	StepStatusDeferred StepStatus = "deferred"
)

// ResultStatus — итог одного выполнения шага.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultFailed    ResultStatus = "failed"
)

// ErrorStrategy — реакция движка на упавший шаг.
type ErrorStrategy string

const (
	// ErrorStrategyFail — прервать task (по умолчанию).
	ErrorStrategyFail ErrorStrategy = "fail"

	// ErrorStrategyRetry — повторить шаг на том же индексе, пока не исчерпан max_retries.
	ErrorStrategyRetry ErrorStrategy = "retry"

	// ErrorStrategySkip — записать ошибку и перейти к следующему шагу.
	ErrorStrategySkip ErrorStrategy = "skip"
)

// DefaultMaxRetries — потолок попыток для error_strategy=retry, если max_retries не задан.
const DefaultMaxRetries = 3

// ParseErrorStrategy парсит строку в ErrorStrategy.
// Пустая строка означает fail.
func ParseErrorStrategy(s string) ErrorStrategy {
	switch s {
	case "retry":
		return ErrorStrategyRetry
	case "skip":
		return ErrorStrategySkip
	default:
		return ErrorStrategyFail
	}
}
