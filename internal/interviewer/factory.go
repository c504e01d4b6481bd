package interviewer

import (
	"fmt"
	"log/slog"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
)

// historyTokenLimit лимит токенов истории ответов в промпте вопроса
const historyTokenLimit = 6000

// NewGenerator выбирает провайдера по настройкам и доступным ключам
func NewGenerator(settings *config.Settings, llm config.LLMConfig, logger *slog.Logger) (interview.Generator, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := llm.ResolveProvider(settings.LLMProvider)
	if provider == config.ProviderScripted {
		return &ScriptedGenerator{}, provider, nil
	}
	if err := llm.ValidateConfig(provider); err != nil {
		return nil, provider, fmt.Errorf("конфигурация провайдера %s: %w", provider, err)
	}

	completer, err := newCompleter(provider, settings.LLMModelName, llm)
	if err != nil {
		return nil, provider, err
	}

	logger.Info("генератор вопросов готов", "model", llm.GetModelInfo(provider, settings.LLMModelName))
	return New(completer, llm, WithBudget(NewTokenBudget(historyTokenLimit)), WithLogger(logger)), provider, nil
}

func newCompleter(provider, model string, llm config.LLMConfig) (Completer, error) {
	switch provider {
	case config.ProviderOpenAI:
		return NewOpenAICompleter(llm.OpenAIKey, model), nil
	case config.ProviderAnthropic:
		return NewAnthropicCompleter(llm.AnthropicKey, model), nil
	case config.ProviderGemini:
		return NewGeminiCompleter(llm.GoogleKey, model), nil
	case config.ProviderOllama:
		return NewOllamaCompleter(llm.OllamaHost, model, nil)
	}
	return nil, fmt.Errorf("неизвестный провайдер %q", provider)
}
