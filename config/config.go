package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Data provider configurations
	FMP          FMPConfig
	AlphaVantage AlphaVantageConfig
	Finnhub      FinnhubConfig
	EDGAR        EDGARConfig

	// LLM configuration
	LLM LLMConfig

	// Analysis engine configuration
	Analysis AnalysisConfig

	// Batch pipeline configuration
	Pipeline PipelineConfig

	// HTTP configuration
	HTTP HTTPConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL            string
	MaxConns       int `validate:"gte=1,lte=100"`
	ConnectTimeout time.Duration
}

// FMPConfig holds Financial Modeling Prep API configuration
type FMPConfig struct {
	APIKey            string
	RequestsPerSecond float64 `validate:"gt=0"`
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey            string
	RequestsPerSecond float64 `validate:"gt=0"`
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	APIKey            string
	RequestsPerSecond float64 `validate:"gt=0"`
}

// EDGARConfig holds SEC EDGAR configuration. The SEC rejects requests without
// a descriptive User-Agent.
type EDGARConfig struct {
	UserAgent         string  `validate:"required"`
	RequestsPerSecond float64 `validate:"gt=0,lte=10"`
}

// LLMConfig selects and configures the text synthesis backend
type LLMConfig struct {
	Provider    string  `validate:"oneof=gemini openai bedrock"`
	Temperature float64 `validate:"gte=0,lte=2"`
	OpenAI      OpenAIConfig
	Bedrock     BedrockConfig
	Gemini      GeminiConfig
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string `validate:"omitempty,url"` // OpenAI-compatible endpoint; empty means api.openai.com
	Model     string
	MaxTokens int
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region           string
	ModelID          string
	MaxTokens        int
	AnthropicVersion string
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey    string
	Model  string
}

// AnalysisConfig holds the valuation engine constants
type AnalysisConfig struct {
	DiscountRate        float64  `validate:"gt=0,lt=1"`
	PerpetualGrowthRate float64  `validate:"gte=-0.05,lt=1"`
	ProjectionYears     int      `validate:"gte=0,lte=30"`
	GrowthFloor         float64  `validate:"gte=-1"`
	GrowthCap           float64  `validate:"lte=1"`
	MinStartFCF         float64  `validate:"gte=0"`
	DeviationThreshold  float64  `validate:"gt=0"`
	RevenuePriority     []string `validate:"min=1,dive,oneof=fmp_quarterly alphavantage_quarterly finnhub_quarterly"`
	FinancialYears      int      `validate:"gte=1,lte=15"`
	QuarterlyPeriods    int      `validate:"gte=2,lte=60"`
}

// PipelineConfig holds batch analysis configuration
type PipelineConfig struct {
	MaxConcurrent   int `validate:"gte=1"`
	TimeoutSec      int `validate:"gte=1"`
	Schedule        string
	Symbols         []string
	CacheTTLMinutes int `validate:"gte=1"`
	// Qualitative 10-K analysis can be disabled to save LLM calls
	Qualitative bool
	// MaxCompetitors peers are compared per company; 0 disables the stage
	MaxCompetitors int `validate:"gte=0,lte=20"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string `validate:"required"`
	CORSAllowedOrigins string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Production bool
	Level      string `validate:"omitempty,oneof=debug info warn warning error"`
	File       string
	MaxSizeMB  int
	MaxAgeDays int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MaxConns:       getEnvInt("DATABASE_MAX_CONNS", 10),
			ConnectTimeout: time.Duration(getEnvInt("DATABASE_CONNECT_TIMEOUT_SEC", 10)) * time.Second,
		},
		FMP: FMPConfig{
			APIKey:            os.Getenv("FMP_API_KEY"),
			RequestsPerSecond: getEnvFloatUnbounded("FMP_REQUESTS_PER_SECOND", 0.66),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:            os.Getenv("ALPHA_VANTAGE_API_KEY"),
			RequestsPerSecond: getEnvFloatUnbounded("ALPHA_VANTAGE_REQUESTS_PER_SECOND", 0.08),
		},
		Finnhub: FinnhubConfig{
			APIKey:            os.Getenv("FINNHUB_API_KEY"),
			RequestsPerSecond: getEnvFloatUnbounded("FINNHUB_REQUESTS_PER_SECOND", 0.66),
		},
		EDGAR: EDGARConfig{
			UserAgent:         getEnvString("SEC_EDGAR_USER_AGENT", "stock-analyzer admin@example.com"),
			RequestsPerSecond: getEnvFloatUnbounded("SEC_EDGAR_REQUESTS_PER_SECOND", 2),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnvString("LLM_PROVIDER", "gemini")),
			Temperature: getEnvFloatRange("LLM_TEMPERATURE", 0.6, 0, 2),
			OpenAI: OpenAIConfig{
				APIKey:    os.Getenv("OPENAI_API_KEY"),
				BaseURL:   os.Getenv("OPENAI_BASE_URL"),
				Model:     getEnvString("OPENAI_MODEL", "gpt-4o"),
				MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 4096),
			},
			Bedrock: BedrockConfig{
				Region:           getEnvString("AWS_REGION", "us-east-1"),
				ModelID:          getEnvString("BEDROCK_MODEL_ID", "anthropic.claude-3-sonnet-20240229-v1:0"),
				MaxTokens:        getEnvInt("BEDROCK_MAX_TOKENS", 4096),
				AnthropicVersion: getEnvString("BEDROCK_ANTHROPIC_VERSION", "bedrock-2023-05-31"),
			},
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
				Model:  getEnvString("GEMINI_MODEL", "gemini-2.5-flash"),
			},
		},
		Analysis: AnalysisConfig{
			DiscountRate:        getEnvFloat("DCF_DISCOUNT_RATE", 0.09),
			PerpetualGrowthRate: getEnvFloatUnbounded("DCF_PERPETUAL_GROWTH_RATE", 0.025),
			ProjectionYears:     getEnvInt("DCF_PROJECTION_YEARS", 5),
			GrowthFloor:         getEnvFloatUnbounded("DCF_GROWTH_FLOOR", -0.05),
			GrowthCap:           getEnvFloatUnbounded("DCF_GROWTH_CAP", 0.15),
			MinStartFCF:         getEnvFloatUnbounded("DCF_MIN_START_FCF", 10000),
			DeviationThreshold:  getEnvFloatUnbounded("Q_REVENUE_DEVIATION_THRESHOLD", 0.75),
			RevenuePriority: getEnvList("REVENUE_SOURCE_PRIORITY",
				[]string{"fmp_quarterly", "alphavantage_quarterly", "finnhub_quarterly"}),
			FinancialYears:   getEnvInt("STOCK_FINANCIAL_YEARS", 7),
			QuarterlyPeriods: getEnvInt("STOCK_QUARTERLY_PERIODS", 8),
		},
		Pipeline: PipelineConfig{
			MaxConcurrent:   getEnvInt("PIPELINE_MAX_CONCURRENT", 2),
			TimeoutSec:      getEnvInt("PIPELINE_TIMEOUT_SEC", 1800),
			Schedule:        os.Getenv("PIPELINE_SCHEDULE"),
			Symbols:         getEnvList("PIPELINE_SYMBOLS", nil),
			CacheTTLMinutes: getEnvInt("CACHE_TTL_MINUTES", 360),
			Qualitative:     getEnvBool("PIPELINE_QUALITATIVE", true),
			MaxCompetitors:  getEnvInt("PIPELINE_MAX_COMPETITORS", 5),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Log: LogConfig{
			Production: getEnvBool("LOG_PRODUCTION", false),
			Level:      strings.ToLower(getEnvString("LOG_LEVEL", "info")),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The Gordon terminal value needs the discount rate to exceed perpetual growth
	if c.Analysis.DiscountRate <= c.Analysis.PerpetualGrowthRate {
		return fmt.Errorf("DCF_DISCOUNT_RATE must exceed DCF_PERPETUAL_GROWTH_RATE, got %.4f <= %.4f",
			c.Analysis.DiscountRate, c.Analysis.PerpetualGrowthRate)
	}
	if c.Analysis.GrowthFloor >= c.Analysis.GrowthCap {
		return fmt.Errorf("DCF_GROWTH_FLOOR must be below DCF_GROWTH_CAP, got %.4f >= %.4f",
			c.Analysis.GrowthFloor, c.Analysis.GrowthCap)
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAI.MaxTokens <= 0 {
			return fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", c.LLM.OpenAI.MaxTokens)
		}
	case "bedrock":
		if c.LLM.Bedrock.ModelID == "" {
			return fmt.Errorf("BEDROCK_MODEL_ID is required when LLM_PROVIDER=bedrock")
		}
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasFMP returns true if Financial Modeling Prep configuration is available
func (c *Config) HasFMP() bool {
	return c.FMP.APIKey != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasFinnhub returns true if Finnhub configuration is available
func (c *Config) HasFinnhub() bool {
	return c.Finnhub.APIKey != ""
}

// HasLLM returns true if the selected LLM provider has credentials.
// Bedrock uses the default AWS credential chain and is always considered available.
func (c *Config) HasLLM() bool {
	switch c.LLM.Provider {
	case "openai":
		return c.LLM.OpenAI.APIKey != ""
	case "gemini":
		return c.LLM.Gemini.APIKey != ""
	case "bedrock":
		return true
	default:
		return false
	}
}

// HasSchedule returns true if a cron schedule is configured
func (c *Config) HasSchedule() bool {
	return c.Pipeline.Schedule != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= 0 && parsed <= 1 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatRange(key string, defaultValue, minVal, maxVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatUnbounded(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:       4,
			ConnectTimeout: 5 * time.Second,
		},
		FMP:          FMPConfig{RequestsPerSecond: 100},
		AlphaVantage: AlphaVantageConfig{RequestsPerSecond: 100},
		Finnhub:      FinnhubConfig{RequestsPerSecond: 100},
		EDGAR: EDGARConfig{
			UserAgent:         "stock-analyzer test@example.com",
			RequestsPerSecond: 10,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Temperature: 0.6,
			OpenAI: OpenAIConfig{
				Model:     "gpt-4o",
				MaxTokens: 4096,
			},
			Bedrock: BedrockConfig{
				Region:           "us-east-1",
				ModelID:          "anthropic.claude-3-sonnet-20240229-v1:0",
				MaxTokens:        4096,
				AnthropicVersion: "bedrock-2023-05-31",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.5-flash",
			},
		},
		Analysis: AnalysisConfig{
			DiscountRate:        0.09,
			PerpetualGrowthRate: 0.025,
			ProjectionYears:     5,
			GrowthFloor:         -0.05,
			GrowthCap:           0.15,
			MinStartFCF:         10000,
			DeviationThreshold:  0.75,
			RevenuePriority:     []string{"fmp_quarterly", "alphavantage_quarterly", "finnhub_quarterly"},
			FinancialYears:      7,
			QuarterlyPeriods:    8,
		},
		Pipeline: PipelineConfig{
			MaxConcurrent:   2,
			TimeoutSec:      60,
			CacheTTLMinutes: 360,
			Qualitative:     true,
			MaxCompetitors:  5,
		},
		HTTP: HTTPConfig{
			Addr:               ":8080",
			CORSAllowedOrigins: "*",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
