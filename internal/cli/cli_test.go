package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/config"
	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
)

func TestClient_Tasks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/tasks":
			if ct := r.Header.Get("Content-Type"); ct != "application/yaml" {
				t.Errorf("expected yaml content type, got %s", ct)
			}
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), "name: demo") {
				t.Errorf("unexpected body: %s", body)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"t-1","name":"demo","status":"pending","total_steps":2}}`))

		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/tasks":
			if r.URL.Query().Get("status") != "running" {
				t.Errorf("expected status filter, got %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"data":[{"id":"t-1","status":"running","progress":50}],"total":1}`))

		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/tasks/t-1/pause":
			w.Write([]byte(`{"data":{"task_id":"t-1","action":"pause","applied":true}}`))

		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"task not found"}}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	task, err := client.CreateTask([]byte("name: demo\n"), contentTypeFor("demo.yml"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.ID != "t-1" || task.TotalSteps != 2 {
		t.Errorf("unexpected task: %+v", task)
	}

	tasks, err := client.ListTasks(ListTasksOpts{Status: "running"})
	if err != nil || len(tasks) != 1 || tasks[0].Progress != 50 {
		t.Errorf("unexpected list: %+v, %v", tasks, err)
	}

	resp, err := client.ControlTask("t-1", "pause")
	if err != nil || !resp.Applied {
		t.Errorf("unexpected control response: %+v, %v", resp, err)
	}

	_, err = client.GetTask("missing")
	if err == nil || !strings.Contains(err.Error(), "task not found") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestClient_ProvideInput(t *testing.T) {
	taskID := uuid.NewString()

	tests := []struct {
		name      string
		taskID    string
		wantPath  string
		forwarded bool
	}{
		{"bare step", "", "/api/v1/inputs/confirm", false},
		{"task scoped", taskID, "/api/v1/inputs/" + taskID + "/confirm", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				json.NewDecoder(r.Body).Decode(&got)
				if tt.forwarded {
					w.WriteHeader(http.StatusAccepted)
				}
				json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
					"step_id": "confirm", "accepted": true, "forwarded": tt.forwarded,
				}})
			}))
			defer server.Close()

			resp, err := NewClient(server.URL).ProvideInput(tt.taskID, "confirm", ParseValue("true"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got["value"] != true {
				t.Errorf("expected decoded bool, got %v", got["value"])
			}
			if !resp.Accepted || resp.Forwarded != tt.forwarded {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"3", float64(3)},
		{`"quoted"`, "quoted"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := ParseValue(tt.in); got != tt.want {
			t.Errorf("ParseValue(%q) = %v (%T), want %v", tt.in, got, got, tt.want)
		}
	}
}

func TestInputValue(t *testing.T) {
	tests := []struct {
		typ  domain.InputType
		in   string
		want any
	}{
		{domain.InputTypeConfirm, "Y", true},
		{domain.InputTypeConfirm, "nope", false},
		{domain.InputTypeNumber, "2.5", 2.5},
		{domain.InputTypeNumber, "abc", "abc"},
		{domain.InputTypeText, "hello", "hello"},
	}
	for _, tt := range tests {
		if got := inputValue(tt.typ, tt.in); got != tt.want {
			t.Errorf("inputValue(%s, %q) = %v, want %v", tt.typ, tt.in, got, tt.want)
		}
	}
}

func TestRunLocal(t *testing.T) {
	task := domain.NewTask("local", []domain.Step{
		{ID: "ask", Config: &domain.WaitConfig{Prompt: "City?", OutputVariable: "city"}},
		{ID: "echo", Config: &domain.ToolConfig{Tool: "echo", Params: map[string]any{"city": "{{city}}"}}, DependsOn: []string{"ask"}},
	}, nil)

	cfg := config.Default()
	cfg.InputTimeout = 2 * time.Second

	var prompts bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	result, err := runLocal(context.Background(), task, cfg, strings.NewReader("Moscow\n"), &prompts, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s: %s", result.Status, result.Error)
	}
	data, ok := result.Data.(map[string]any)
	if !ok || data["city"] != "Moscow" {
		t.Errorf("expected echoed city, got %v", result.Data)
	}
	if !strings.Contains(prompts.String(), "[ask] City?") {
		t.Errorf("expected prompt, got %q", prompts.String())
	}

	var out, errOut bytes.Buffer
	NewOutputTo(&out, &errOut, false).TaskResult(result)
	if !strings.Contains(out.String(), "echo") || !strings.Contains(errOut.String(), "2/2 steps completed") {
		t.Errorf("unexpected output: %q / %q", out.String(), errOut.String())
	}
}

func TestOutput_Event(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	id := uuid.New()

	tests := []struct {
		name string
		ev   events.Event
		want string
	}{
		{
			name: "step failed",
			ev: events.Event{Type: events.StepCompleted, TaskID: id, StepID: "fetch", Timestamp: ts,
				Result: &domain.StepResult{StepID: "fetch", Status: domain.ResultFailed, Error: "boom"}},
			want: `step=fetch status=failed error="boom"`,
		},
		{
			name: "progress",
			ev:   events.Event{Type: events.TaskProgress, TaskID: id, Timestamp: ts, Progress: 50},
			want: "progress=50%",
		},
		{
			name: "input pending",
			ev: events.Event{Type: events.InputPending, TaskID: id, StepID: "ask", Timestamp: ts,
				Input: &domain.InputRequest{StepID: "ask", Prompt: "City?"}},
			want: `prompt="City?"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			NewOutputTo(&out, io.Discard, false).Event(tt.ev)
			line := out.String()
			if !strings.HasPrefix(line, "12:30:00") || !strings.Contains(line, "task="+id.String()) {
				t.Errorf("unexpected prefix: %q", line)
			}
			if !strings.Contains(line, tt.want) {
				t.Errorf("expected %q in %q", tt.want, line)
			}
		})
	}
}

func TestOutput_EmptyTable(t *testing.T) {
	var out, errOut bytes.Buffer
	NewOutputTo(&out, &errOut, false).Print([]string{"ID"}, nil, []string{})
	if out.Len() != 0 || strings.TrimSpace(errOut.String()) != "(none)" {
		t.Errorf("unexpected output: %q / %q", out.String(), errOut.String())
	}

	out.Reset()
	NewOutputTo(&out, &errOut, true).Print([]string{"ID"}, nil, []string{})
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %q", out.String())
	}
}
