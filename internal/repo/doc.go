// Package repo хранит tasks в PostgreSQL.
//
// Схема лежит в schema.sql и применяется через Migrate.
// TaskRepo реализует orchestrator.Completer: движок записывает
// итог выполнения напрямую в таблицу tasks.
package repo
