package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	appconfig "stock-analyzer/config"
	"stock-analyzer/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// bedrockClient is the slice of the Bedrock runtime API the service uses
type bedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockService invokes Claude models hosted on AWS Bedrock
type BedrockService struct {
	client           bedrockClient
	model            string
	maxTokens        int
	anthropicVersion string
	temperature      float64
}

// claudeRequest is the Anthropic messages body Bedrock expects for Claude models
type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// text joins the text blocks of the reply
func (r claudeResponse) text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type != "text" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Text)
	}
	return strings.TrimSpace(b.String())
}

// NewBedrockService creates a new BedrockService using the default AWS credential chain
func NewBedrockService(ctx context.Context, cfg *appconfig.Config) (*BedrockService, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.LLM.Bedrock.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &BedrockService{
		client:           bedrockruntime.NewFromConfig(awsCfg),
		model:            cfg.LLM.Bedrock.ModelID,
		maxTokens:        cfg.LLM.Bedrock.MaxTokens,
		anthropicVersion: cfg.LLM.Bedrock.AnthropicVersion,
		temperature:      cfg.LLM.Temperature,
	}, nil
}

// InvokeWithPrompt sends a prompt to Claude and returns the response text
func (s *BedrockService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerBedrock, "invoke")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerBedrock, func() (string, error) {
		return s.invoke(ctx, systemPrompt, userPrompt)
	})

	timer.ObserveExternalAPI(BreakerBedrock, "invoke")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerBedrock, "invoke", categorizeAPIError(err))
	}
	return result, err
}

func (s *BedrockService) invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(claudeRequest{
		AnthropicVersion: s.anthropicVersion,
		MaxTokens:        s.maxTokens,
		Temperature:      s.temperature,
		System:           systemPrompt,
		Messages:         []claudeMessage{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal bedrock request: %w", err)
	}

	output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", classifyBedrockError(s.model, err)
	}

	var response claudeResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("failed to decode bedrock response: %w", err)
	}

	text := response.text()
	if text == "" {
		return "", fmt.Errorf("empty response from bedrock model %s (stop reason %q)", s.model, response.StopReason)
	}
	if response.StopReason == "max_tokens" {
		observability.Warn("bedrock response truncated at max tokens", "model", s.model, "max_tokens", s.maxTokens)
	}
	observability.Debug("bedrock invocation",
		"model", s.model,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
	)
	return text, nil
}

// classifyBedrockError maps Bedrock exceptions onto the shared service sentinels
func classifyBedrockError(model string, err error) error {
	var (
		throttled *types.ThrottlingException
		denied    *types.AccessDeniedException
		missing   *types.ResourceNotFoundException
	)
	switch {
	case errors.As(err, &throttled):
		return fmt.Errorf("%w: bedrock throttled %s: %v", ErrRateLimited, model, err)
	case errors.As(err, &denied):
		return fmt.Errorf("%w: bedrock denied access to %s: %v", ErrUnauthorized, model, err)
	case errors.As(err, &missing):
		return fmt.Errorf("%w: bedrock model %s: %v", ErrNotFound, model, err)
	default:
		return fmt.Errorf("failed to invoke bedrock model %s: %w", model, err)
	}
}
