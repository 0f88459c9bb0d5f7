package mq

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
)

func TestParsePayload(t *testing.T) {
	id := uuid.New()
	msg := NewMessage(MessageTypeTaskControl, TaskControlPayload{TaskID: id, Action: ControlPause})

	// Сообщение проходит через JSON, как после доставки из очереди
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var delivered Message
	if err := json.Unmarshal(data, &delivered); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if delivered.Type != MessageTypeTaskControl {
		t.Errorf("expected %s, got %s", MessageTypeTaskControl, delivered.Type)
	}

	payload, err := ParsePayload[TaskControlPayload](&delivered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.TaskID != id || payload.Action != ControlPause {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	msg := &Message{Payload: map[string]any{"task_id": "not-a-uuid"}}
	if _, err := ParsePayload[TaskRunnablePayload](msg); !errors.Is(err, ErrUnexpectedMessage) {
		t.Errorf("expected ErrUnexpectedMessage, got %v", err)
	}
}

func TestEventRoutingKey(t *testing.T) {
	tests := []struct {
		typ  events.Type
		want RoutingKey
	}{
		{events.StepStarted, "step.started"},
		{events.InputPending, "input.pending"},
		{events.TaskCompleted, "task.completed"},
	}
	for _, tt := range tests {
		if got := EventRoutingKey(tt.typ); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.typ, tt.want, got)
		}
	}
}

func TestNewMessage(t *testing.T) {
	a := NewMessage(MessageTypeTaskRunnable, nil)
	b := NewMessage(MessageTypeTaskRunnable, nil)
	if a.ID == "" || a.ID == b.ID {
		t.Error("messages should get unique ids")
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestControlAction_ResultingStatus(t *testing.T) {
	tests := []struct {
		action ControlAction
		want   domain.TaskStatus
		ok     bool
	}{
		{ControlPause, domain.TaskStatusPaused, true},
		{ControlResume, domain.TaskStatusRunning, true},
		{ControlCancel, "", false},
		{ControlProvideInput, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			got, ok := tt.action.ResultingStatus()
			if got != tt.want || ok != tt.ok {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestConnectionConfig_Defaults(t *testing.T) {
	cfg := ConnectionConfig{MinReconnectDelay: 5 * time.Second, MaxReconnectDelay: time.Second}
	cfg.defaults()

	if cfg.URL != DefaultURL() {
		t.Errorf("expected default URL, got %s", cfg.URL)
	}
	if cfg.Name != "conductor" {
		t.Errorf("expected default name, got %s", cfg.Name)
	}
	if cfg.MinReconnectDelay != 5*time.Second {
		t.Errorf("min delay should be kept, got %s", cfg.MinReconnectDelay)
	}
	// max меньше min — берётся значение по умолчанию
	if cfg.MaxReconnectDelay != 30*time.Second {
		t.Errorf("expected 30s max delay, got %s", cfg.MaxReconnectDelay)
	}
	if cfg.Logger == nil {
		t.Error("expected default logger")
	}
}

func TestConnection_BroadcastReconnect(t *testing.T) {
	c := &Connection{}
	a, b := c.ReconnectNotify(), c.ReconnectNotify()

	c.broadcastReconnect()
	// повторное уведомление не блокирует, пока подписчик не прочитал
	c.broadcastReconnect()

	for i, sub := range []<-chan struct{}{a, b} {
		select {
		case <-sub:
		default:
			t.Errorf("subscriber %d not notified", i)
		}
	}
}
