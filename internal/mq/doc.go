// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//   - events.go     — публикация событий движка (events.Sink)
//
// Типы сообщений:
//   - task.runnable  — task сохранён и ждёт запуска
//   - task.control   — pause / resume / cancel для выполняющегося task
//   - engine.event   — событие движка (step.started, input.pending, ...)
//
// Exchanges:
//   - conductor.tasks   — запуск task
//   - conductor.control — команды управления (fanout)
//   - conductor.events  — события движка (topic)
//   - conductor.dlq     — dead letter queue
package mq
