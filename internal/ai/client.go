package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"story-server/internal/config"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrGenerationFailed - ошибка при генерации текста AI
var ErrGenerationFailed = errors.New("ошибка генерации текста AI")

// GenerationParams - параметры генерации для одного вызова.
// Используем указатели, чтобы отличить 0/0.0 от отсутствия.
type GenerationParams struct {
	Model       string // Переопределяет модель клиента, если непусто
	Agent       string // Имя агента для метрик (sketch, draft, critique, ...)
	Temperature *float64
	TopK        *int
	TopP        *float64
	NumCtx      *int
	MaxTokens   *int
}

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_server_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "agent", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_server_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "agent"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_server_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20), // 250, 500, ..., 5000
		},
		[]string{"model", "agent"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_server_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20), // 100, 200, ..., 2000
		},
		[]string{"model", "agent"},
	)
)

// UsageInfo содержит информацию об использовании токенов
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client интерфейс для взаимодействия с AI API
type Client interface {
	// GenerateText генерирует текст по промту и параметрам.
	GenerateText(ctx context.Context, prompt string, params GenerationParams) (string, UsageInfo, error)
	// GenerateJSON генерирует структурированный JSON-ответ (format: json у модели).
	// Валидность JSON НЕ гарантируется - вызывающая сторона чинит и парсит сама.
	GenerateJSON(ctx context.Context, prompt string, params GenerationParams) (string, UsageInfo, error)
}

// NewClient создает реализацию Client по типу из конфигурации.
func NewClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	switch cfg.AIClientType {
	case "openai":
		logger.Info("Используется реализация AI клиента: OpenAI-совместимый API")
		return newOpenAIClient(cfg, logger), nil
	case "ollama":
		logger.Info("Используется реализация AI клиента: Ollama")
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.AIClientType)
	}
}

// estimateTokens оценивает количество токенов через tiktoken,
// когда backend не вернул usage (актуально для некоторых моделей Ollama).
func estimateTokens(model, text string) int {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Для не-OpenAI моделей берем базовую кодировку
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(tke.Encode(text, nil, nil))
}

// --- Ollama Client Implementation ---

// ollamaClient реализует Client с использованием ollama/api
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (*ollamaClient, error) {
	baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}

	client := api.NewClient(parsedURL, nil)
	logger.Info("Ollama клиент создан",
		zap.String("baseURL", baseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout))

	return &ollamaClient{
		client:  client,
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, prompt string, params GenerationParams) (string, UsageInfo, error) {
	return c.generate(ctx, prompt, params, nil)
}

func (c *ollamaClient) GenerateJSON(ctx context.Context, prompt string, params GenerationParams) (string, UsageInfo, error) {
	return c.generate(ctx, prompt, params, json.RawMessage(`"json"`))
}

func (c *ollamaClient) generate(ctx context.Context, prompt string, params GenerationParams, format json.RawMessage) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	model := c.model
	if params.Model != "" {
		model = params.Model
	}
	agent := params.Agent
	if agent == "" {
		agent = "unknown"
	}

	if strings.TrimSpace(prompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: промт пуст", ErrGenerationFailed)
	}

	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.NumCtx != nil {
		options["num_ctx"] = *params.NumCtx
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	req := &api.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Format:  format,
		Stream:  func(b bool) *bool { return &b }(false),
		Options: options,
	}

	// Контекст с таймаутом, специфичным для этого запроса
	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	c.logger.Debug("Отправка запроса к Ollama",
		zap.String("model", model), zap.String("agent", agent), zap.Int("promptBytes", len(prompt)))

	var resp api.GenerateResponse
	err := c.client.Generate(requestCtx, req, func(r api.GenerateResponse) error {
		resp = r // Сохраняем последний (полный) ответ
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("Таймаут запроса к Ollama API",
				zap.Duration("timeout", c.timeout), zap.Duration("duration", duration),
				zap.String("agent", agent), zap.Error(err))
		} else {
			c.logger.Error("Ошибка от Ollama API",
				zap.Duration("duration", duration), zap.String("agent", agent), zap.Error(err))
		}
		aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(resp.Response) == "" {
		c.logger.Error("Ollama API вернул пустой ответ",
			zap.Duration("duration", duration), zap.String("agent", agent))
		aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": model, "agent": agent}).Observe(duration.Seconds())

	generatedText := strings.TrimSpace(resp.Response)

	// Заполняем UsageInfo из ответа Ollama, при отсутствии - оцениваем tiktoken-ом
	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	if usageInfo.PromptTokens == 0 {
		usageInfo.PromptTokens = estimateTokens(model, prompt)
	}
	if usageInfo.CompletionTokens == 0 {
		usageInfo.CompletionTokens = estimateTokens(model, generatedText)
	}
	usageInfo.TotalTokens = usageInfo.PromptTokens + usageInfo.CompletionTokens

	aiPromptTokens.With(prometheus.Labels{"model": model, "agent": agent}).Observe(float64(usageInfo.PromptTokens))
	aiCompletionTokens.With(prometheus.Labels{"model": model, "agent": agent}).Observe(float64(usageInfo.CompletionTokens))

	c.logger.Debug("Ответ от Ollama API получен",
		zap.Duration("duration", duration),
		zap.String("agent", agent),
		zap.Int("responseChars", len(generatedText)),
		zap.Int("totalTokens", usageInfo.TotalTokens))

	return generatedText, usageInfo, nil
}

// --- OpenAI Client Implementation ---

// openAIClient реализует Client с использованием go-openai.
// Подходит и для OpenAI-совместимых серверов (vLLM, LM Studio и т.п.).
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func newOpenAIClient(cfg *config.Config, logger *zap.Logger) *openAIClient {
	clientConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	if cfg.AIBaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.AIBaseURL, "/")
	}
	return &openAIClient{
		client: openaigo.NewClientWithConfig(clientConfig),
		model:  cfg.AIModel,
		logger: logger.Named("OpenAIClient"),
	}
}

func (c *openAIClient) GenerateText(ctx context.Context, prompt string, params GenerationParams) (string, UsageInfo, error) {
	return c.generate(ctx, prompt, params, nil)
}

func (c *openAIClient) GenerateJSON(ctx context.Context, prompt string, params GenerationParams) (string, UsageInfo, error) {
	return c.generate(ctx, prompt, params, &openaigo.ChatCompletionResponseFormat{
		Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *openAIClient) generate(ctx context.Context, prompt string, params GenerationParams, format *openaigo.ChatCompletionResponseFormat) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	model := c.model
	if params.Model != "" {
		model = params.Model
	}
	agent := params.Agent
	if agent == "" {
		agent = "unknown"
	}

	if strings.TrimSpace(prompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: промт пуст", ErrGenerationFailed)
	}

	request := openaigo.ChatCompletionRequest{
		Model: model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: format,
	}
	if params.Temperature != nil {
		request.Temperature = float32(*params.Temperature)
	}
	if params.TopP != nil {
		request.TopP = float32(*params.TopP)
	}
	if params.MaxTokens != nil {
		request.MaxTokens = *params.MaxTokens
	}
	// top_k и num_ctx OpenAI API не поддерживает - игнорируем

	startTime := time.Now()
	c.logger.Debug("Отправка запроса к OpenAI API",
		zap.String("model", model), zap.String("agent", agent), zap.Int("promptBytes", len(prompt)))

	resp, err := c.client.CreateChatCompletion(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ошибка от OpenAI API",
			zap.Duration("duration", duration), zap.String("agent", agent), zap.Error(err))
		aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Error("OpenAI API вернул пустой ответ",
			zap.Duration("duration", duration), zap.String("agent", agent))
		aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": model, "agent": agent, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": model, "agent": agent}).Observe(duration.Seconds())

	generatedText := strings.TrimSpace(resp.Choices[0].Message.Content)

	usageInfo.PromptTokens = resp.Usage.PromptTokens
	usageInfo.CompletionTokens = resp.Usage.CompletionTokens
	usageInfo.TotalTokens = resp.Usage.TotalTokens
	if usageInfo.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": model, "agent": agent}).Observe(float64(usageInfo.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": model, "agent": agent}).Observe(float64(usageInfo.CompletionTokens))
	}

	c.logger.Debug("Ответ от OpenAI API получен",
		zap.Duration("duration", duration),
		zap.String("agent", agent),
		zap.Int("responseChars", len(generatedText)),
		zap.Int("totalTokens", usageInfo.TotalTokens))

	return generatedText, usageInfo, nil
}
