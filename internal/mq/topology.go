package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeTasks — task, готовые к запуску (Task Queue → worker).
	ExchangeTasks Exchange = "conductor.tasks"

	// ExchangeControl — pause/resume/cancel. Fanout: команду получает каждый
	// экземпляр, а применяет тот, у которого task выполняется.
	ExchangeControl Exchange = "conductor.control"

	// ExchangeEvents — события движка, routing key = тип события.
	ExchangeEvents Exchange = "conductor.events"

	ExchangeDLQ Exchange = "conductor.dlq"
)

// Queues — имена очередей.
const (
	QueueTasksRunnable Queue = "tasks.runnable"
	QueueDLQTasks      Queue = "dlq.tasks"
)

// Routing keys.
const (
	RoutingKeyRunnable RoutingKey = "runnable"
	RoutingKeyDLQTasks RoutingKey = "tasks"

	// RoutingKeyAllEvents — подписка на все события в ExchangeEvents.
	RoutingKeyAllEvents RoutingKey = "#"
)

// SetupTopology объявляет exchanges, очереди и привязки.
// Идемпотентна: повторный вызов с теми же параметрами ничего не меняет.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}

		if err := declareQueues(ch); err != nil {
			return err
		}

		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, amqp.ExchangeDirect},
		{ExchangeControl, amqp.ExchangeFanout},
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// tasks.runnable — с DLQ: сообщение без task в БД уходит туда
		{QueueTasksRunnable, dlqArgs},
		{QueueDLQTasks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTasksRunnable, RoutingKeyRunnable, ExchangeTasks},
		{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// declareExclusive создаёт временную очередь экземпляра и привязывает её.
// Очередь удаляется вместе с соединением.
func declareExclusive(ch *amqp.Channel, exchange Exchange, routingKey RoutingKey) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // name (генерирует сервер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare exclusive queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, string(routingKey), string(exchange), false, nil); err != nil {
		return "", fmt.Errorf("bind exclusive queue to %s: %w", exchange, err)
	}

	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conductor RabbitMQ Topology:

    conductor.tasks (direct)
    └── tasks.runnable [routing: runnable]
            Consumer: queue worker
            DLQ: dlq.tasks

    conductor.control (fanout)
    └── <exclusive per instance>
            Consumer: queue worker (pause / resume / cancel)

    conductor.events (topic)
    └── <subscribers bind their own queues, e.g. "input.pending" or "#">

    conductor.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
