package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	appconfig "stock-analyzer/config"
	"stock-analyzer/observability"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// chatCompleter is the part of the chat completions API the service calls
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIService synthesizes text through the chat completions API. Any
// OpenAI-compatible endpoint works when OPENAI_BASE_URL is set.
type OpenAIService struct {
	completions chatCompleter
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIService creates a new OpenAIService instance
func NewOpenAIService(cfg *appconfig.Config) (*OpenAIService, error) {
	if cfg.LLM.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.LLM.OpenAI.APIKey),
		// retries and backoff are owned by the breaker chain
		option.WithMaxRetries(0),
	}
	if cfg.LLM.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.LLM.OpenAI.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIService{
		completions: &client.Chat.Completions,
		model:       cfg.LLM.OpenAI.Model,
		maxTokens:   cfg.LLM.OpenAI.MaxTokens,
		temperature: cfg.LLM.Temperature,
	}, nil
}

// InvokeWithPrompt sends one system and one user message and returns the reply text
func (s *OpenAIService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerOpenAI, "invoke")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerOpenAI, func() (string, error) {
		return s.complete(ctx, systemPrompt, userPrompt)
	})

	timer.ObserveExternalAPI(BreakerOpenAI, "invoke")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerOpenAI, "invoke", categorizeAPIError(err))
	}
	return result, err
}

func (s *OpenAIService) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	completion, err := s.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(s.model),
		MaxTokens:   openai.Int(int64(s.maxTokens)),
		Temperature: openai.Float(s.temperature),
		Messages:    messages,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI model %s", s.model)
	}

	choice := completion.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from OpenAI model %s (finish reason %q)", s.model, choice.FinishReason)
	}
	if choice.FinishReason == "length" {
		observability.Warn("openai response truncated at max tokens", "model", s.model, "max_tokens", s.maxTokens)
	}
	return text, nil
}

// classifyOpenAIError maps API status codes onto the shared service sentinels
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai request failed: %w", err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: openai returned %d", ErrUnauthorized, apiErr.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: openai returned 429", ErrRateLimited)
	default:
		return fmt.Errorf("openai returned %d: %w", apiErr.StatusCode, err)
	}
}
