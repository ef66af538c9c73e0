package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ModelConfig holds the model-invoker-facing settings that may come from the
// environment rather than CLI flags.
type ModelConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	ModelName   string        `mapstructure:"model_name"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	RetryTimes  int           `mapstructure:"retry_times"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// FromEnvironment reads ModelConfig fields from their conventional
// environment variables, applying defaults for anything unset, then decodes
// the assembled map into a ModelConfig via mapstructure. CLI flags that were
// explicitly provided should overwrite the returned struct's fields
// afterward, since flags take precedence over environment values.
func FromEnvironment() ModelConfig {
	raw := map[string]any{
		"api_key":     firstNonEmpty(os.Getenv("LCBENCH_API_KEY"), GetProviderAPIKey("openai")),
		"base_url":    envOr("LCBENCH_BASE_URL", "https://api.openai.com/v1/chat/completions"),
		"model_name":  envOr("LCBENCH_MODEL_NAME", "gpt-4o"),
		"temperature": envOr("LCBENCH_TEMPERATURE", "0.0"),
		"max_tokens":  envOr("LCBENCH_MAX_TOKENS", "256"),
		"timeout":     envOr("LCBENCH_TIMEOUT", "60s"),
		"concurrency": envOr("LCBENCH_CONCURRENCY", "4"),
		"retry_times": envOr("LCBENCH_RETRY_TIMES", "5"),
		"retry_delay": envOr("LCBENCH_RETRY_DELAY", "2s"),
	}

	var cfg ModelConfig
	if err := decodeModelConfig(raw, &cfg); err != nil {
		// raw is built entirely from conventional defaults plus string env
		// values mapstructure can weakly-type-convert; a decode failure here
		// means ModelConfig's shape changed without updating raw above.
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// decodeModelConfig decodes a map of env-sourced strings into a ModelConfig,
// coercing numeric and duration strings the way WeaklyTypedInput allows.
func decodeModelConfig(input map[string]any, output *ModelConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
