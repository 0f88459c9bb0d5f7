package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/orchestrator"
	"github.com/shaiso/conductor/internal/repo"
	"github.com/shaiso/conductor/internal/telemetry"
)

// TaskStore — хранилище tasks.
// Реализуется repo.TaskRepo.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*repo.TaskRecord, error)
	List(ctx context.Context, filter repo.TaskFilter) ([]*repo.TaskRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error
}

// Controller — управление выполняющимися tasks.
// Реализуется orchestrator.Engine.
type Controller interface {
	PauseTask(id uuid.UUID) bool
	ResumeTask(id uuid.UUID) bool
	CancelTask(id uuid.UUID) bool
	Stats(id uuid.UUID) (orchestrator.TaskStats, bool)
}

// Inputs — ожидающие ввода wait шаги этого экземпляра.
// Реализуется steps.InputBroker.
type Inputs interface {
	Pending() []domain.InputRequest
	// Provide с uuid.Nil ищет шаг только по ID.
	Provide(taskID uuid.UUID, stepID string, value any) bool
}

// Notifier публикует сообщения для других экземпляров.
// Реализуется mq.Publisher.
type Notifier interface {
	PublishTaskRunnable(ctx context.Context, taskID uuid.UUID) error
	PublishControl(ctx context.Context, taskID uuid.UUID, action mq.ControlAction) error
	PublishInput(ctx context.Context, taskID uuid.UUID, stepID string, value any) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store      TaskStore
	controller Controller
	inputs     Inputs
	notifier   Notifier
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store      TaskStore
	Controller Controller
	Inputs     Inputs

	// Notifier — опционально; без него tasks подхватывает только polling,
	// а команды применяются лишь к tasks этого экземпляра.
	Notifier Notifier

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:      cfg.Store,
		controller: cfg.Controller,
		inputs:     cfg.Inputs,
		notifier:   cfg.Notifier,
		logger:     logger,
	}
}

// log — логгер запроса (с request_id), если его положил Logging.
func (h *Handler) log(r *http.Request) *slog.Logger {
	return telemetry.FromContextOr(r.Context(), h.logger)
}
