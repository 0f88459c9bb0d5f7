// Package engine содержит чистые функции, на которых стоит выполнение task.
//
// Включает:
//   - interpolate.go — подстановка {{name}} из плоского контекста
//   - condition.go   — вычисление условий вида "var OP literal"
//   - parser.go      — разбор определений task из JSON и YAML, валидация
//   - dag.go         — граф зависимостей шагов и проверка порядка
//
// Пакет не хранит состояния и не выполняет ввод-вывод, кроме чтения
// файла определения в LoadTaskFile.
package engine
