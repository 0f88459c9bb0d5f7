package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{" debug ", slog.LevelDebug},
		{"warning", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			if got := LogLevel(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), WithStepID(WithTaskID(logger, "t-1"), "s-1"))
	FromContext(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "task_id=t-1") || !strings.Contains(out, "step_id=s-1") {
		t.Errorf("expected ids in log line, got %q", out)
	}

	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger for empty context")
	}
	if FromContextOr(context.Background(), logger) != logger {
		t.Error("expected fallback logger for empty context")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	NewLogger(&buf, slog.LevelInfo, "TEXT").Debug("hidden")
	NewLogger(&buf, slog.LevelInfo, "text").Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") || !strings.Contains(out, "service=conductor") {
		t.Errorf("unexpected text output: %q", out)
	}

	buf.Reset()
	NewLogger(&buf, slog.LevelInfo, "").Info("json")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"msg":"json"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestMetrics_Events(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()
	taskID := uuid.New()

	started := events.New(events.StepStarted, taskID)
	started.StepKind = domain.StepKindTool
	m.Emit(ctx, started)
	m.Emit(ctx, started) // второй шаг того же task

	if got := testutil.ToFloat64(m.activeTasks); got != 1 {
		t.Errorf("expected 1 active task, got %v", got)
	}

	done := events.New(events.StepCompleted, taskID)
	done.StepKind = domain.StepKindTool
	done.Result = &domain.StepResult{Status: domain.ResultFailed, Duration: time.Second}
	m.Emit(ctx, done)

	if got := testutil.ToFloat64(m.stepsTotal.WithLabelValues("tool", "failed")); got != 1 {
		t.Errorf("expected 1 failed tool step, got %v", got)
	}

	m.Emit(ctx, events.New(events.InputPending, taskID))
	waitDone := events.New(events.StepCompleted, taskID)
	waitDone.StepKind = domain.StepKindWait
	waitDone.Result = &domain.StepResult{Status: domain.ResultCompleted}
	m.Emit(ctx, waitDone)
	if got := testutil.ToFloat64(m.pendingInputs); got != 0 {
		t.Errorf("expected no pending inputs, got %v", got)
	}

	finished := events.New(events.TaskCompleted, taskID)
	finished.TaskResult = &domain.TaskResult{TaskID: taskID, Status: domain.TaskStatusFailed}
	m.Emit(ctx, finished)

	if got := testutil.ToFloat64(m.activeTasks); got != 0 {
		t.Errorf("expected 0 active tasks, got %v", got)
	}
	if got := testutil.ToFloat64(m.tasksTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed task, got %v", got)
	}
}

func TestMetrics_HTTPMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/tasks/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tasks/"+id, nil))
	}

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/tasks/{id}", "404")); got != 2 {
		t.Errorf("expected 2 requests on route pattern, got %v", got)
	}
}
