package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	appconfig "stock-analyzer/config"
	"stock-analyzer/observability"
)

// geminiClient is the slice of the GenAI models API the service uses
type geminiClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiService handles communication with Google Gemini
type GeminiService struct {
	client      geminiClient
	model       string
	temperature float64
}

// NewGeminiService creates a new GeminiService instance
func NewGeminiService(ctx context.Context, cfg *appconfig.Config) (*GeminiService, error) {
	if cfg.LLM.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.LLM.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &GeminiService{
		client:      client.Models,
		model:       cfg.LLM.Gemini.Model,
		temperature: cfg.LLM.Temperature,
	}, nil
}

// InvokeWithPrompt sends a prompt to Gemini and returns the response text
func (s *GeminiService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerGemini, "invoke")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerGemini, func() (string, error) {
		genConfig := &genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(s.temperature)),
		}
		if systemPrompt != "" {
			genConfig.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: systemPrompt}},
			}
		}

		resp, err := s.client.GenerateContent(ctx, s.model, genai.Text(userPrompt), genConfig)
		if err != nil {
			return "", fmt.Errorf("gemini generation failed: %w", err)
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			reason := "no candidates"
			if len(resp.Candidates) > 0 {
				reason = string(resp.Candidates[0].FinishReason)
			}
			return "", fmt.Errorf("empty response from Gemini (%s)", reason)
		}
		return text, nil
	})

	timer.ObserveExternalAPI(BreakerGemini, "invoke")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerGemini, "invoke", categorizeAPIError(err))
	}
	return result, err
}
