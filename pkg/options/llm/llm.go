// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ProviderOptions configures one LLM provider connection.
type ProviderOptions struct {
	// Provider is the provider name (openai, ollama).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base address.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the API key (required for openai).
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model is the model name.
	Model string `json:"model" mapstructure:"model"`

	// Timeout is the request timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the maximum number of retries per request.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewEmbeddingOptions creates default options for the embedding provider.
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// NewChatOptions creates default options for the chat provider.
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// AddFlags adds flags to the flagset under the given prefix (e.g. "embedding").
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefix string) {
	fs.StringVar(&o.Provider, prefix+".provider", o.Provider, "LLM provider (openai, ollama)")
	fs.StringVar(&o.BaseURL, prefix+".base-url", o.BaseURL, "LLM API base URL")
	fs.StringVar(&o.APIKey, prefix+".api-key", o.APIKey, "LLM API key (required for openai)")
	fs.StringVar(&o.Model, prefix+".model", o.Model, "LLM model name")
	fs.DurationVar(&o.Timeout, prefix+".timeout", o.Timeout, "LLM request timeout")
	fs.IntVar(&o.MaxRetries, prefix+".max-retries", o.MaxRetries, "LLM max retries per request")
}

// Validate validates the options.
func (o *ProviderOptions) Validate(prefix string) error {
	if o.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if o.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	if o.Provider == "openai" && o.APIKey == "" {
		return fmt.Errorf("%s.api-key is required for openai provider", prefix)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	return nil
}

// ToConfigMap converts the options into the provider factory configuration.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}
