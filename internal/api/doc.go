// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go       — Handler с DI (хранилище, движок, publisher, logger)
//   - routes.go        — маршруты chi
//   - middleware.go    — middleware (logging, recovery)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - task_handler.go  — обработчики для /tasks
//   - input_handler.go — обработчики для /inputs
//
// API создаёт tasks, показывает их состояние, управляет выполнением
// (pause/resume/cancel) и принимает ответы пользователя для wait шагов.
package api
