package mq

import "errors"

// Ошибки транспорта.
var (
	// ErrNoChannel — соединение не установлено или переподключается.
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrNotConnected — брокер недоступен при подключении.
	ErrNotConnected = errors.New("rabbitmq not reachable")

	// ErrUnexpectedMessage — тип сообщения не подходит очереди.
	ErrUnexpectedMessage = errors.New("unexpected message type")
)
