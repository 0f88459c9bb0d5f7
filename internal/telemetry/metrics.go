package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
)

const namespace = "conductor"

// Metrics — Prometheus метрики движка и HTTP API.
//
// Подключается к движку как events.Sink, поэтому сам движок
// о Prometheus ничего не знает.
type Metrics struct {
	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	tasksTotal    *prometheus.CounterVec
	taskDuration  prometheus.Histogram
	activeTasks   prometheus.Gauge
	pendingInputs prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// NewMetrics регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		stepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Step executions by kind and result status.",
		}, []string{"kind", "status"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		tasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Finished tasks by final status.",
		}, []string{"status"}),
		taskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		activeTasks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Tasks that started executing steps and have not finished.",
		}),
		pendingInputs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_inputs",
			Help:      "Wait steps waiting for user input.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		active: make(map[uuid.UUID]struct{}),
	}
}

// Emit реализует events.Sink.
func (m *Metrics) Emit(_ context.Context, ev events.Event) {
	switch ev.Type {
	case events.StepStarted:
		m.mu.Lock()
		if _, ok := m.active[ev.TaskID]; !ok {
			m.active[ev.TaskID] = struct{}{}
			m.activeTasks.Inc()
		}
		m.mu.Unlock()

	case events.StepCompleted:
		if ev.Result == nil {
			return
		}
		kind := string(ev.StepKind)
		m.stepsTotal.WithLabelValues(kind, string(ev.Result.Status)).Inc()
		m.stepDuration.WithLabelValues(kind).Observe(ev.Result.Duration.Seconds())
		if ev.StepKind == domain.StepKindWait {
			m.pendingInputs.Dec()
		}

	case events.InputPending:
		m.pendingInputs.Inc()

	case events.TaskCompleted:
		m.mu.Lock()
		if _, ok := m.active[ev.TaskID]; ok {
			delete(m.active, ev.TaskID)
			m.activeTasks.Dec()
		}
		m.mu.Unlock()

		if ev.TaskResult != nil {
			m.tasksTotal.WithLabelValues(string(ev.TaskResult.Status)).Inc()
			m.taskDuration.Observe(ev.TaskResult.Duration.Seconds())
		}
	}
}

// HTTPMiddleware считает запросы. Маршрут берётся из шаблона chi,
// чтобы ID в пути не раздували число серий.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
