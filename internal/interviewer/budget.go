package interviewer

import (
	"github.com/tiktoken-go/tokenizer"

	"interview-engine/internal/storage"
)

// TokenBudget ограничивает историю ответов в промпте числом токенов
type TokenBudget struct {
	codec tokenizer.Codec
	limit int
}

// NewTokenBudget использует кодировку GPT-4 для всех провайдеров.
// limit <= 0 отключает ограничение.
func NewTokenBudget(limit int) *TokenBudget {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		codec = nil
	}
	return &TokenBudget{codec: codec, limit: limit}
}

// Count число токенов в тексте, при ошибке кодека оценка по длине
func (b *TokenBudget) Count(text string) int {
	if b == nil || b.codec == nil {
		return len(text) / 4
	}
	n, err := b.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Fit оставляет самые свежие ответы, укладывающиеся в лимит.
// Порядок сохраняется, последний ответ остается всегда.
func (b *TokenBudget) Fit(answers []storage.Answer) []storage.Answer {
	if b == nil || b.limit <= 0 || len(answers) == 0 {
		return answers
	}

	used := 0
	start := len(answers)
	for i := len(answers) - 1; i >= 0; i-- {
		cost := b.Count(answers[i].Question) + b.Count(answers[i].Answer)
		if used+cost > b.limit && start < len(answers) {
			break
		}
		used += cost
		start = i
	}
	return answers[start:]
}
