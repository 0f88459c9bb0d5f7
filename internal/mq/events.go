package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/conductor/internal/events"
)

const defaultPublishTimeout = 5 * time.Second

// EventSink публикует события движка в ExchangeEvents.
//
// Routing key совпадает с типом события, поэтому подписчик может
// выбрать, например, только "input.pending" или "task.*".
// Ошибки публикации логируются и не влияют на выполнение task.
type EventSink struct {
	pub     *Publisher
	timeout time.Duration
	logger  *slog.Logger
}

// NewEventSink создаёт EventSink.
func NewEventSink(pub *Publisher, logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{
		pub:     pub,
		timeout: defaultPublishTimeout,
		logger:  logger,
	}
}

// Emit публикует событие.
func (s *EventSink) Emit(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	msg := &Message{
		ID:        ev.ID,
		Type:      MessageTypeEvent,
		Payload:   ev,
		Timestamp: ev.Timestamp,
	}

	if err := s.pub.Publish(ctx, ExchangeEvents, EventRoutingKey(ev.Type), msg); err != nil {
		s.logger.Warn("failed to publish event",
			"event", ev.Type,
			"task_id", ev.TaskID,
			"error", err,
		)
	}
}

// EventRoutingKey возвращает routing key для типа события.
func EventRoutingKey(typ events.Type) RoutingKey {
	return RoutingKey(typ)
}
