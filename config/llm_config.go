package config

import (
	"github.com/pkg/errors"
)

// LLMConfig selects the text generation service. deepseek and gemini are
// reached through their OpenAI-compatible endpoints.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // openai | deepseek | gemini | mock
	Model       string  `json:"model" yaml:"model"`
	APIKey      string  `json:"apiKey" yaml:"api_key"`
	BaseURL     string  `json:"baseUrl" yaml:"base_url"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

func (l *LLMConfig) Validate() []error {
	var errs = make([]error, 0)
	switch l.Provider {
	case "mock":
		return errs
	case "openai", "gemini":
	case "deepseek":
		if l.BaseURL == "" {
			errs = append(errs, errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)"))
		}
	case "":
		errs = append(errs, errors.New("llm.provider is required"))
		return errs
	default:
		errs = append(errs, errors.Errorf("llm provider %s not supported", l.Provider))
		return errs
	}
	if l.APIKey == "" {
		errs = append(errs, errors.Errorf("llm.api_key is required for provider %s", l.Provider))
	}
	if l.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		errs = append(errs, errors.Errorf("llm.temperature %.2f out of range [0, 2]", l.Temperature))
	}
	return errs
}

func NewDefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
	}
}
