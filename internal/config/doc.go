// Package config читает настройки conductor из переменных окружения.
//
//	DB_URL, RABBITMQ_URL, HTTP_PORT
//	MAX_CONCURRENT_TASKS, POLL_INTERVAL, INPUT_TIMEOUT
//	LLM_PROVIDER, OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL
//
// LOG_LEVEL и LOG_FORMAT читает telemetry.SetupLogger.
package config
