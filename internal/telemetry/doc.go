// Package telemetry — логи и метрики Conductor.
//
// Логгер собирается из LOG_LEVEL/LOG_FORMAT (SetupLogger) или явно
// (NewLogger для CLI). Metrics подключается к движку как events.Sink
// и к роутеру как HTTP middleware; отдаётся через promhttp на /metrics.
package telemetry
