package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)

	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	r.Register(NewEchoTool())
	if r.Count() != 1 {
		t.Errorf("expected 1 tool, got %d", r.Count())
	}

	tool, err := r.Get("echo")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if tool.Name() != "echo" {
		t.Errorf("expected echo, got %s", tool.Name())
	}

	_, err = r.Get("unknown")
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}

	r.Unregister("echo")
	if r.Has("echo") {
		t.Error("should not have echo after unregister")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(nil)

	want := []string{"echo", "http", "transform"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}

type failingTool struct{}

func (failingTool) Name() string { return "broken" }
func (failingTool) Invoke(context.Context, map[string]any) (any, error) {
	return nil, errors.New("backend unavailable")
}

func TestRegistry_InvokeTool(t *testing.T) {
	r := DefaultRegistry(nil)
	r.Register(failingTool{})
	ctx := context.Background()

	resp, err := r.InvokeTool(ctx, "echo", map[string]any{"q": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Result.(map[string]any)["q"] != "hi" {
		t.Errorf("unexpected result: %v", resp.Result)
	}

	resp, _ = r.InvokeTool(ctx, "missing", nil)
	if resp.Success || !strings.Contains(resp.Error, "tool not found") {
		t.Errorf("expected not found response, got %+v", resp)
	}

	resp, _ = r.InvokeTool(ctx, "broken", nil)
	if resp.Success || resp.Error != "backend unavailable" {
		t.Errorf("expected tool error response, got %+v", resp)
	}
}

// HTTP Tool Tests

func TestHTTPTool_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   []int{1, 2, 3},
		})
	}))
	defer server.Close()

	out, err := NewHTTPTool().Invoke(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := out.(map[string]any)
	if result["status_code"] != 200 {
		t.Errorf("expected status_code 200, got %v", result["status_code"])
	}

	body, ok := result["body"].(map[string]any)
	if !ok {
		t.Fatalf("expected body to be map, got %T", result["body"])
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
}

func TestHTTPTool_POST_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("expected auth header, got %s", auth)
		}

		data, _ := io.ReadAll(r.Body)
		var in map[string]any
		if err := json.Unmarshal(data, &in); err != nil {
			t.Errorf("invalid body: %v", err)
		}
		if in["city"] != "Moscow" {
			t.Errorf("unexpected body: %v", in)
		}

		w.Write([]byte("created"))
	}))
	defer server.Close()

	out, err := NewHTTPTool().Invoke(context.Background(), map[string]any{
		"method":  "post",
		"url":     server.URL,
		"headers": map[string]any{"Authorization": "Bearer secret"},
		"body":    map[string]any{"city": "Moscow"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := out.(map[string]any)["body"]; body != "created" {
		t.Errorf("expected text body, got %v", body)
	}
}

func TestHTTPTool_FailOnStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	// Без fail_on_status ответ возвращается как есть
	out, err := NewHTTPTool().Invoke(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(map[string]any)["status_code"] != 404 {
		t.Errorf("expected 404, got %v", out.(map[string]any)["status_code"])
	}

	// Значение после подстановки приходит строкой
	_, err = NewHTTPTool().Invoke(context.Background(), map[string]any{"url": server.URL, "fail_on_status": "true"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Errorf("expected HTTPError 404, got %v", err)
	}
}

func TestHTTPTool_InvalidParams(t *testing.T) {
	_, err := NewHTTPTool().Invoke(context.Background(), map[string]any{"method": "GET"})
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}

func TestHTTPTool_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPTool().Invoke(ctx, map[string]any{"url": server.URL})
	if err == nil {
		t.Fatal("expected error on cancelled request")
	}
}

// Transform Tool Tests

func TestTransformTool(t *testing.T) {
	out, err := NewTransformTool().Invoke(context.Background(), map[string]any{
		"mappings": map[string]any{
			"city":  "Moscow",
			"days":  "3",
			"ratio": "0.5",
			"flag":  "true",
			"items": `[1,2]`,
			"obj":   `{"a":1}`,
			"raw":   42,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := out.(map[string]any)
	tests := []struct {
		key  string
		want any
	}{
		{"city", "Moscow"},
		{"days", int64(3)},
		{"ratio", 0.5},
		{"flag", true},
		{"raw", 42},
	}
	for _, tt := range tests {
		if result[tt.key] != tt.want {
			t.Errorf("%s: expected %v (%T), got %v (%T)", tt.key, tt.want, tt.want, result[tt.key], result[tt.key])
		}
	}

	if arr, ok := result["items"].([]any); !ok || len(arr) != 2 {
		t.Errorf("expected array, got %v", result["items"])
	}
	if obj, ok := result["obj"].(map[string]any); !ok || obj["a"] != float64(1) {
		t.Errorf("expected object, got %v", result["obj"])
	}
}

func TestTransformTool_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewTransformTool().Invoke(ctx, nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]any{
		"s":       "text",
		"n":       float64(7),
		"ns":      "12",
		"bad":     "abc",
		"b":       false,
		"bs":      "false",
		"headers": map[string]any{"X-Count": 3},
	}

	if ParamString(params, "s") != "text" || ParamString(params, "n") != "7" || ParamString(params, "none") != "" {
		t.Error("ParamString mismatch")
	}
	if ParamInt(params, "n") != 7 || ParamInt(params, "ns") != 12 || ParamInt(params, "bad") != 0 {
		t.Error("ParamInt mismatch")
	}
	if ParamBool(params, "b", true) || ParamBool(params, "bs", true) || !ParamBool(params, "none", true) {
		t.Error("ParamBool mismatch")
	}
	if h := ParamMapString(params, "headers"); h["X-Count"] != "3" {
		t.Errorf("ParamMapString mismatch: %v", h)
	}
}
