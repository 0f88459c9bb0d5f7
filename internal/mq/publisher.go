package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/conductor/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskRunnable MessageType = "task.runnable"
	MessageTypeTaskControl  MessageType = "task.control"
	MessageTypeEvent        MessageType = "engine.event"
)

// ControlAction — команда управления выполняющимся task.
type ControlAction string

const (
	ControlPause  ControlAction = "pause"
	ControlResume ControlAction = "resume"
	ControlCancel ControlAction = "cancel"

	// ControlProvideInput — ответ для wait шага (StepID, Value).
	ControlProvideInput ControlAction = "input.provide"
)

// ResultingStatus — статус, который сохраняется после применения команды.
// Для cancel итог запишет движок при завершении task.
func (a ControlAction) ResultingStatus() (domain.TaskStatus, bool) {
	switch a {
	case ControlPause:
		return domain.TaskStatusPaused, true
	case ControlResume:
		return domain.TaskStatusRunning, true
	default:
		return "", false
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage создаёт конверт с новым ID.
func NewMessage(typ MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// TaskRunnablePayload — task сохранён и ждёт запуска.
type TaskRunnablePayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// TaskControlPayload — команда для выполняющегося task.
// StepID и Value заполняются только для ControlProvideInput.
type TaskControlPayload struct {
	TaskID uuid.UUID     `json:"task_id"`
	Action ControlAction `json:"action"`
	StepID string        `json:"step_id,omitempty"`
	Value  any           `json:"value,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishTaskRunnable сообщает, что task можно запускать.
// Потребитель: queue worker.
func (p *Publisher) PublishTaskRunnable(ctx context.Context, taskID uuid.UUID) error {
	msg := NewMessage(MessageTypeTaskRunnable, TaskRunnablePayload{TaskID: taskID})
	return p.Publish(ctx, ExchangeTasks, RoutingKeyRunnable, msg)
}

// PublishControl рассылает команду всем экземплярам.
func (p *Publisher) PublishControl(ctx context.Context, taskID uuid.UUID, action ControlAction) error {
	msg := NewMessage(MessageTypeTaskControl, TaskControlPayload{TaskID: taskID, Action: action})
	return p.Publish(ctx, ExchangeControl, "", msg)
}

// PublishInput рассылает ответ для wait шага; применит его экземпляр,
// где task ждёт ввода.
func (p *Publisher) PublishInput(ctx context.Context, taskID uuid.UUID, stepID string, value any) error {
	msg := NewMessage(MessageTypeTaskControl, TaskControlPayload{
		TaskID: taskID,
		Action: ControlProvideInput,
		StepID: stepID,
		Value:  value,
	})
	return p.Publish(ctx, ExchangeControl, "", msg)
}
