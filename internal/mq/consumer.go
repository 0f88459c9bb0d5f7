package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение. Ack/nack делает Consumer
// по возвращённой ошибке.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — разобранное сообщение и признак повторной доставки.
type Delivery struct {
	Message     Message
	Redelivered bool
}

// ConsumerConfig — что и как потреблять.
type ConsumerConfig struct {
	// Queue — durable очередь из SetupTopology. Пусто — exclusive очередь
	// экземпляра, привязанная к Exchange/RoutingKey при каждом подключении.
	Queue      string
	Exchange   Exchange
	RoutingKey RoutingKey

	Handler Handler

	// Prefetch — сколько сообщений брокер отдаёт без ack (по умолчанию 1).
	Prefetch int
}

// Consumer читает очередь и переживает переподключения Connection.
//
// Ошибка Handler:
//   - ErrUnexpectedMessage — сразу в DLQ;
//   - иначе первая доставка возвращается в очередь, повторная уходит в DLQ.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig

	reconnected <-chan struct{}
	cancel      context.CancelFunc
}

// NewConsumer создаёт Consumer и подписывает его на переподключения conn.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	target := cfg.Queue
	if target == "" {
		target = string(cfg.Exchange)
	}

	return &Consumer{
		conn:        conn,
		logger:      logger.With("consumer", target),
		cfg:         cfg,
		reconnected: conn.ReconnectNotify(),
	}
}

// Start блокирует до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("subscribe failed, waiting for reconnect", "error", err)
		} else {
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.reconnected:
			c.logger.Info("reconnected, resubscribing")
		}
	}
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	queue := c.cfg.Queue
	if queue == "" {
		name, err := declareExclusive(ch, c.cfg.Exchange, c.cfg.RoutingKey)
		if err != nil {
			return nil, err
		}
		queue = name
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	c.logger.Info("consuming", "queue", queue)
	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed")
				return
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, dead-lettering", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("message received", "redelivered", raw.Redelivered)

	err := c.cfg.Handler(ctx, &Delivery{Message: msg, Redelivered: raw.Redelivered})
	if err == nil {
		_ = raw.Ack(false)
		return
	}

	requeue := !raw.Redelivered && !errors.Is(err, ErrUnexpectedMessage)
	logger.Error("handler failed", "error", err, "requeue", requeue)
	_ = raw.Nack(false, requeue)
}

// ParsePayload декодирует Payload в T.
// После json.Unmarshal конверта Payload — map[string]any, поэтому идёт
// повторный проход через JSON.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
	}

	return out, nil
}
