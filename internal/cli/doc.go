// Package cli реализует инструмент командной строки Conductor.
//
// # Обзор
//
// Большая часть команд — клиент Conductor API: работает через HTTP
// и не импортирует internal/api. Команда exec выполняет task локально,
// собирая движок в процессе CLI, а watch читает события из RabbitMQ.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Conductor API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	tasks, err := client.ListTasks(cli.ListTasksOpts{Status: "running"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conductor task list --json | jq .
//
// ## Commands
//
//   - task: list, create, show, pause, resume, cancel
//   - input: list, provide
//   - exec: локальное выполнение файла определения; wait шаги спрашивают stdin
//   - watch: поток событий из conductor.events
//
// Группы создаются фабричными функциями (NewTaskCmd и т.д.),
// принимающими clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
