package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/conductor/internal/llm"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/repo"
	"github.com/shaiso/conductor/internal/steps"
)

// ErrInvalidValue — переменная окружения задана, но не разбирается.
var ErrInvalidValue = errors.New("invalid config value")

// Config — настройки процесса conductor.
type Config struct {
	DatabaseURL string
	RabbitMQURL string
	HTTPPort    string

	// MaxConcurrentTasks — сколько tasks выполняются одновременно.
	MaxConcurrentTasks int
	PollInterval       time.Duration

	// InputTimeout — сколько wait шаг ждёт ответа пользователя.
	InputTimeout time.Duration

	LLM llm.Config
}

// Default возвращает конфигурацию для локальной разработки.
func Default() Config {
	return Config{
		DatabaseURL:        repo.DefaultURL,
		RabbitMQURL:        mq.DefaultURL(),
		HTTPPort:           "8080",
		MaxConcurrentTasks: 10,
		PollInterval:       10 * time.Second,
		InputTimeout:       steps.DefaultInputTimeout,
		LLM: llm.Config{
			Provider: llm.ProviderNone,
			Model:    "gpt-4o-mini",
		},
	}
}

// Load читает конфигурацию из переменных окружения.
// Незаданные переменные берутся из Default.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
			return
		}
		*dst = d
	}

	str("DB_URL", &cfg.DatabaseURL)
	str("RABBITMQ_URL", &cfg.RabbitMQURL)
	str("HTTP_PORT", &cfg.HTTPPort)
	num("MAX_CONCURRENT_TASKS", &cfg.MaxConcurrentTasks)
	dur("POLL_INTERVAL", &cfg.PollInterval)
	dur("INPUT_TIMEOUT", &cfg.InputTimeout)

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("OPENAI_MODEL", &cfg.LLM.Model)
	str("OPENAI_BASE_URL", &cfg.LLM.BaseURL)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr возвращает адрес HTTP сервера.
func (c Config) Addr() string {
	return ":" + c.HTTPPort
}
