// Package tools содержит встроенные инструменты для tool шагов.
//
// Registry реализует steps.ToolInvoker и ищет инструмент по имени:
//
//   - http: HTTP запрос к внешнему API
//   - transform: сборка объекта из подставленных значений
//   - echo: возврат параметров как есть
//
// Дополнительные инструменты регистрируются через Registry.Register.
package tools
