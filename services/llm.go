package services

import (
	"context"
	"fmt"

	appconfig "stock-analyzer/config"
)

// NewLLMService builds the backend selected by LLM_PROVIDER
func NewLLMService(ctx context.Context, cfg *appconfig.Config) (LLMService, error) {
	var (
		svc LLMService
		err error
	)
	switch cfg.LLM.Provider {
	case "gemini":
		var g *GeminiService
		g, err = NewGeminiService(ctx, cfg)
		svc = g
	case "openai":
		var o *OpenAIService
		o, err = NewOpenAIService(cfg)
		svc = o
	case "bedrock":
		var b *BedrockService
		b, err = NewBedrockService(ctx, cfg)
		svc = b
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}
