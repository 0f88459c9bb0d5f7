// Conductor — сервис выполнения tasks.
//
// Один процесс содержит:
//   - HTTP API (/api/v1), /healthz и /metrics
//   - Engine со Step Executor, инструментами и LLM
//   - Worker, забирающий pending tasks из PostgreSQL (RabbitMQ + polling)
//
// Экземпляры масштабируются горизонтально: task выполняет тот,
// кто первым сделал Claim, а pause/resume/cancel и ответы wait шагам
// рассылаются всем.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/conductor/internal/api"
	"github.com/shaiso/conductor/internal/config"
	"github.com/shaiso/conductor/internal/events"
	"github.com/shaiso/conductor/internal/llm"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/orchestrator"
	"github.com/shaiso/conductor/internal/queue"
	"github.com/shaiso/conductor/internal/repo"
	"github.com/shaiso/conductor/internal/steps"
	"github.com/shaiso/conductor/internal/telemetry"
	"github.com/shaiso/conductor/internal/tools"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conductor")

	if err := run(logger); err != nil {
		logger.Error("conductor failed", "error", err)
		os.Exit(1)
	}
	logger.Info("conductor stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	if err := repo.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("database connected")

	taskRepo := repo.NewTaskRepo(pool)

	// RabbitMQ — опционально, без него работает polling
	var publisher *mq.Publisher
	hostname, _ := os.Hostname()
	mqConn, err := mq.Dial(mq.ConnectionConfig{
		URL:    cfg.RabbitMQURL,
		Name:   "conductor@" + hostname,
		Logger: logger,
	})
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())
		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Events: лог + метрики + прогресс в БД (+ RabbitMQ)
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	sinks := []events.Sink{
		events.LogSink{Logger: logger},
		metrics,
		queue.NewProgressSink(taskRepo, logger),
	}
	if publisher != nil {
		sinks = append(sinks, mq.NewEventSink(publisher, logger))
	}
	sink := events.NewMulti(sinks...)

	// Step Executor
	inputs := steps.NewInputBroker()
	executor := steps.NewExecutor(steps.Config{
		Tools:        tools.DefaultRegistry(logger),
		Inputs:       inputs,
		Events:       sink,
		InputTimeout: cfg.InputTimeout,
		Logger:       logger,
	})

	model, err := llm.NewModel(cfg.LLM)
	if err != nil {
		return fmt.Errorf("configure llm: %w", err)
	}
	if model != nil {
		executor.SetModel(llm.NewClient(model, cfg.LLM, logger).Generate)
		logger.Info("llm configured", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	engine := orchestrator.New(orchestrator.Config{
		Executor:  executor,
		Events:    sink,
		Completer: taskRepo,
		Logger:    logger,
	})

	// Worker
	w := queue.New(queue.Config{
		Store:         taskRepo,
		Runner:        engine,
		Inputs:        executor,
		Conn:          mqConn,
		MaxConcurrent: cfg.MaxConcurrentTasks,
		PollInterval:  cfg.PollInterval,
		Logger:        logger,
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	// HTTP: API + /healthz + /metrics
	apiCfg := api.Config{
		Store:      taskRepo,
		Controller: engine,
		Inputs:     inputs,
		Logger:     logger,
	}
	if publisher != nil {
		apiCfg.Notifier = publisher
	}
	handler := api.NewHandler(apiCfg)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		broker := "disabled"
		if mqConn != nil {
			broker = "down"
			if mqConn.IsConnected() {
				broker = "up"
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok uptime=%s rabbitmq=%s", time.Since(startTime).Round(time.Second), broker)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/", handler.Routes(metrics.HTTPMiddleware))

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		cancel()
	}
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Останавливаем worker: выполняющиеся tasks отменяются и записывают итог
	w.Stop()
	return nil
}
