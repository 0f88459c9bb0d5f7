// Package steps выполняет отдельные шаги task.
//
// Executor разбирает тип шага исчерпывающим type switch по domain.StepConfig:
//
//   - tool: вызов инструмента через ToolInvoker
//   - llm: вызов модели через ModelFunc
//   - wait: ожидание ввода пользователя через InputBroker
//   - condition: вычисление условия, ветка возвращается как данные
//   - parallel: батчи substeps, конкурентно внутри батча
//   - loop: substep для каждого элемента массива
//   - delay: пауза с поддержкой отмены
//
// Ошибки выполнения шага возвращаются как failed StepResult.
// Ошибки конфигурации возвращаются как error и завершают task.
package steps
