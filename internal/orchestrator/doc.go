// Package orchestrator доводит task до терминального статуса.
//
// Engine отвечает за:
//   - Обход шагов в порядке списка
//   - Отложенные шаги с невыполненными зависимостями (один проход, без повторного обхода)
//   - Стратегии ошибок fail, retry и skip
//   - Паузу, возобновление и отмену
//   - События о ходе выполнения и итоговый TaskResult
//
// Выполнение отдельного шага делегируется StepRunner (steps.Executor).
package orchestrator
