package config

import (
	"fmt"
)

// LLMConfig содержит ключи и параметры генерации для всех провайдеров
type LLMConfig struct {
	OpenAIKey    string
	AnthropicKey string
	GoogleKey    string
	OllamaHost   string
	MaxTokens    int
	Temperature  float64
}

// LoadLLMConfig загружает конфигурацию моделей из переменных окружения
func LoadLLMConfig() LLMConfig {
	return LLMConfig{
		OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
		GoogleKey:    getEnv("GOOGLE_API_KEY", ""),
		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),
		MaxTokens:    getEnvAsInt("LLM_MAX_TOKENS", 2000),
		Temperature:  getEnvAsFloat("LLM_TEMPERATURE", 0.7),
	}
}

// ResolveProvider выбирает провайдера: явный из настроек или по доступным ключам
func (c *LLMConfig) ResolveProvider(requested string) string {
	if requested != "" && requested != ProviderAuto {
		return requested
	}

	switch {
	case c.OpenAIKey != "":
		return ProviderOpenAI
	case c.AnthropicKey != "":
		return ProviderAnthropic
	case c.GoogleKey != "":
		return ProviderGemini
	default:
		return ProviderOllama
	}
}

// ValidateConfig проверяет корректность конфигурации для выбранного провайдера
func (c *LLMConfig) ValidateConfig(provider string) error {
	switch provider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case ProviderAnthropic:
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	case ProviderGemini:
		if c.GoogleKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required")
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("OLLAMA_HOST is required")
		}
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}

	return nil
}

// GetModelInfo возвращает информацию о используемой модели
func (c *LLMConfig) GetModelInfo(provider, model string) map[string]any {
	return map[string]any{
		"model":       model,
		"max_tokens":  c.MaxTokens,
		"temperature": c.Temperature,
		"provider":    provider,
	}
}
