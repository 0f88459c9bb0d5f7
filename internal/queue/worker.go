package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/repo"
	"golang.org/x/sync/semaphore"
)

// Default configuration values.
const (
	defaultPollInterval  = 10 * time.Second
	defaultBatchSize     = 50
	defaultMaxConcurrent = 10
)

// TaskStore — хранилище tasks, нужное воркеру.
// Реализуется repo.TaskRepo.
type TaskStore interface {
	ListRunnable(ctx context.Context, limit int) ([]*repo.TaskRecord, error)
	Claim(ctx context.Context, id uuid.UUID) (*repo.TaskRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, index int, progress float64) error
}

// Runner — движок выполнения tasks.
// Реализуется orchestrator.Engine.
type Runner interface {
	ExecuteTask(ctx context.Context, task *domain.Task) *domain.TaskResult
	PauseTask(id uuid.UUID) bool
	ResumeTask(id uuid.UUID) bool
	CancelTask(id uuid.UUID) bool
}

// InputProvider передаёт ответы wait шагам этого экземпляра.
// Реализуется steps.Executor.
type InputProvider interface {
	ProvideInput(taskID uuid.UUID, stepID string, value any) bool
}

// Worker забирает готовые tasks и передаёт их движку.
//
// Worker:
//   - Получает task.runnable из RabbitMQ (event-driven)
//   - Периодически проверяет pending tasks в БД (polling fallback)
//   - Ограничивает число одновременно выполняемых tasks
//   - Применяет pause/resume/cancel и ответы wait шагам из conductor.control
//
// Несколько экземпляров могут потреблять из одной очереди:
// Claim гарантирует, что task выполнит только один из них.
type Worker struct {
	store  TaskStore
	runner Runner
	inputs InputProvider
	conn   *mq.Connection

	sem           *semaphore.Weighted
	maxConcurrent int64
	pollInterval  time.Duration
	batchSize     int

	consumers []*mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup // consumers + poll
	tasksWg    sync.WaitGroup // выполняющиеся tasks
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Store  TaskStore
	Runner Runner

	// Inputs — получатель разосланных ответов; nil — ответы игнорируются.
	Inputs InputProvider

	// Conn — соединение с RabbitMQ. Если nil, работает только polling.
	Conn *mq.Connection

	// MaxConcurrent — сколько tasks выполняются одновременно (default: 10).
	MaxConcurrent int

	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество tasks за один poll (default: 50)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	maxConcurrent := int64(cfg.MaxConcurrent)
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		store:         cfg.Store,
		runner:        cfg.Runner,
		inputs:        cfg.Inputs,
		conn:          cfg.Conn,
		sem:           semaphore.NewWeighted(maxConcurrent),
		maxConcurrent: maxConcurrent,
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для tasks.runnable
//   - Consumer временной очереди conductor.control
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"max_concurrent", w.maxConcurrent,
	)

	if w.conn != nil {
		w.startConsumer(ctx, mq.ConsumerConfig{
			Queue:    string(mq.QueueTasksRunnable),
			Handler:  w.handleTaskRunnable,
			Prefetch: int(w.maxConcurrent),
		})
		w.startConsumer(ctx, mq.ConsumerConfig{
			Exchange: mq.ExchangeControl,
			Handler:  w.handleControl,
		})
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

func (w *Worker) startConsumer(ctx context.Context, cfg mq.ConsumerConfig) {
	consumer := mq.NewConsumer(w.conn, w.logger, cfg)
	w.consumers = append(w.consumers, consumer)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("consumer error", "queue", cfg.Queue, "exchange", cfg.Exchange, "error", err)
		}
	}()
}

// Stop останавливает Worker и ждёт завершения выполняющихся tasks.
// Отмена контекста отменяет и сами tasks.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	for _, c := range w.consumers {
		c.Stop()
	}

	w.wg.Wait()
	w.tasksWg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем tasks, созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
// Не ждёт свободного слота: то, что не влезло, подхватит следующий poll.
func (w *Worker) poll(ctx context.Context) {
	tasks, err := w.store.ListRunnable(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list runnable tasks", "error", err)
		return
	}

	if len(tasks) == 0 {
		return
	}

	w.logger.Debug("poll found runnable tasks", "count", len(tasks))

	for _, rec := range tasks {
		if !w.sem.TryAcquire(1) {
			w.logger.Debug("no free slots, postponing", "remaining", len(tasks))
			return
		}

		if err := w.processTask(ctx, rec.Task.ID); err != nil {
			if !errors.Is(err, ErrTaskNotPending) {
				w.logger.Error("failed to process task from poll", "task_id", rec.Task.ID, "error", err)
			}
		}
	}
}
