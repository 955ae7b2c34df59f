package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultModelID = "us.anthropic.claude-sonnet-4-20250514-v1:0"

// Config is read once at startup and treated as immutable afterwards.
type Config struct {
	Port string

	ModelID      string
	ModelIDParam string // SSM parameter name; overrides ModelID when set

	MaxTokens     int32
	Temperature   float32
	MaxToolRounds int

	FetchTimeout  time.Duration
	FetchMaxBytes int64

	InvocationsTable string
	HistoryTTL       time.Duration

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("BEDROCK_MODEL_ID", DefaultModelID)
	v.SetDefault("BEDROCK_MODEL_ID_PARAM", "")
	v.SetDefault("AGENT_MAX_TOKENS", 4096)
	v.SetDefault("AGENT_TEMPERATURE", 0.2)
	v.SetDefault("AGENT_MAX_TOOL_ROUNDS", 8)
	v.SetDefault("FETCH_TIMEOUT", "20s")
	v.SetDefault("FETCH_MAX_BYTES", 64*1024)
	v.SetDefault("INVOCATIONS_TABLE", "")
	v.SetDefault("HISTORY_TTL", "720h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads configuration from the environment. Files in envFiles are
// loaded first with godotenv; missing files are skipped and never override
// variables already set.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:             strings.TrimSpace(v.GetString("PORT")),
		ModelID:          strings.TrimSpace(v.GetString("BEDROCK_MODEL_ID")),
		ModelIDParam:     strings.TrimSpace(v.GetString("BEDROCK_MODEL_ID_PARAM")),
		MaxTokens:        v.GetInt32("AGENT_MAX_TOKENS"),
		Temperature:      float32(v.GetFloat64("AGENT_TEMPERATURE")),
		MaxToolRounds:    v.GetInt("AGENT_MAX_TOOL_ROUNDS"),
		FetchTimeout:     v.GetDuration("FETCH_TIMEOUT"),
		FetchMaxBytes:    v.GetInt64("FETCH_MAX_BYTES"),
		InvocationsTable: strings.TrimSpace(v.GetString("INVOCATIONS_TABLE")),
		HistoryTTL:       v.GetDuration("HISTORY_TTL"),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:        strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.ModelID == "" && c.ModelIDParam == "" {
		return fmt.Errorf("BEDROCK_MODEL_ID or BEDROCK_MODEL_ID_PARAM is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("AGENT_MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("AGENT_TEMPERATURE must be within [0,1], got %g", c.Temperature)
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("AGENT_MAX_TOOL_ROUNDS must be positive, got %d", c.MaxToolRounds)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.FetchMaxBytes <= 0 {
		return fmt.Errorf("FETCH_MAX_BYTES must be positive, got %d", c.FetchMaxBytes)
	}
	if c.InvocationsTable != "" && c.HistoryTTL <= 0 {
		return fmt.Errorf("HISTORY_TTL must be positive, got %s", c.HistoryTTL)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}
