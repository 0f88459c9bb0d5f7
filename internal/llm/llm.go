package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// Ошибки вызова модели.
var (
	// ErrUnknownProvider — провайдер не поддерживается.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrMissingAPIKey — не задан ключ API.
	ErrMissingAPIKey = errors.New("llm api key is required")

	// ErrEmptyResponse — модель не вернула ни одного варианта ответа.
	ErrEmptyResponse = errors.New("empty model response")
)

// Поддерживаемые провайдеры.
const (
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config — настройки подключения к модели.
type Config struct {
	Provider string
	APIKey   string
	Model    string

	// BaseURL — для OpenAI-совместимых API (OpenRouter, локальные сервера).
	BaseURL string

	Temperature float64
	MaxTokens   int
}

// NewModel создаёт langchaingo модель по конфигурации.
// Для ProviderNone возвращает nil без ошибки: llm шаги будут завершать task
// ошибкой конфигурации.
func NewModel(cfg Config) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return nil, nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return model, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// Client оборачивает llms.Model в функцию вызова для llm шагов.
type Client struct {
	model       llms.Model
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewClient создаёт Client.
func NewClient(model llms.Model, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Generate отправляет prompt (и system prompt, если он не пуст) и возвращает текст ответа.
// Сигнатура совпадает с steps.ModelFunc.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	var opts []llms.CallOption
	if c.temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.temperature))
	}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("model responded", "prompt_len", len(prompt), "response_len", len(resp.Choices[0].Content))

	return resp.Choices[0].Content, nil
}
