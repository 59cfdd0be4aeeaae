package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chatmemory/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

var (
	// ErrNotConfigured ключ API или модель не заданы.
	ErrNotConfigured = errors.New("GROQ_API_KEY and GROQ_MODEL must be set")
	// ErrEmptyResponse в ответе модели нет ни одного варианта.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Generator минимальный интерфейс LLM клиента: готовый промпт на вход, текст ответа на выход.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ChatModelClient Generator поверх llms.Model из langchaingo.
type ChatModelClient struct {
	llm         llms.Model
	model       string
	maxTokens   int
	temperature float64
}

// NewChatModelClient оборачивает уже созданную модель.
// maxTokens <= 0 оставляет значение по умолчанию провайдера.
func NewChatModelClient(llm llms.Model, model string, maxTokens int, temperature float64) *ChatModelClient {
	return &ChatModelClient{
		llm:         llm,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// NewGroqClient создаёт клиента Groq через OpenAI-совместимый API.
// Без ключа или модели возвращает ErrNotConfigured.
func NewGroqClient(cfg config.GroqConfig, httpClient *http.Client) (*ChatModelClient, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, ErrNotConfigured
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
	}
	if httpClient != nil {
		opts = append(opts, openai.WithHTTPClient(httpClient))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init groq client: %w", err)
	}
	return NewChatModelClient(model, cfg.Model, cfg.MaxTokens, cfg.Temperature), nil
}

func (c *ChatModelClient) Model() string {
	return c.model
}

func (c *ChatModelClient) Generate(ctx context.Context, prompt string) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(c.maxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, callOpts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
