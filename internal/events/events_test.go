package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMulti_FanOut(t *testing.T) {
	var a, b Recorder
	var calls int

	sink := NewMulti(&a, nil, &b, SinkFunc(func(context.Context, Event) { calls++ }))
	if len(sink) != 3 {
		t.Fatalf("nil sinks must be dropped, got %d", len(sink))
	}

	id := uuid.New()
	sink.Emit(context.Background(), New(StepStarted, id))
	sink.Emit(context.Background(), New(TaskCompleted, id))

	if len(a.Events()) != 2 || len(b.Events()) != 2 || calls != 2 {
		t.Errorf("every sink should receive both events: a=%d b=%d f=%d",
			len(a.Events()), len(b.Events()), calls)
	}
	if got := a.OfType(TaskCompleted); len(got) != 1 || got[0].TaskID != id {
		t.Errorf("OfType returned %v", got)
	}
}

func TestNew(t *testing.T) {
	ev := New(TaskProgress, uuid.New())
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Errorf("event must carry id and timestamp: %+v", ev)
	}
}

func TestLogSink_NilLogger(t *testing.T) {
	// Не должен паниковать без логгера
	LogSink{}.Emit(context.Background(), New(StepCompleted, uuid.New()))
	Nop{}.Emit(context.Background(), New(StepCompleted, uuid.New()))
}
