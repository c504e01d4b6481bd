package prompts

import (
	"fmt"
	"strings"
	"time"

	"interview-engine/internal/storage"
)

const evaluationSystemTemplate = `Ты опытный технический интервьюер. Собеседование на роль %s завершено, проведи разбор ответов кандидата.

ОЦЕНКА:
- Каждому ответу поставь оценку: good, average или bad
- Для каждого ответа дай подробную обратную связь: что было не так и как ответ можно улучшить
- Оцени интервью целиком: уверенность, повторяющиеся паттерны ответов, ясность и полнота в пределах %s на вопрос
- Вынеси однозначный вердикт: Capable или Not Capable. Для Not Capable перечисли главные причины в summary

ФОРМАТ ОТВЕТА (только JSON, без markdown):
{
  "summary": "общий вывод",
  "verdict": "Capable или Not Capable",
  "reviews": [{"question": "вопрос", "rating": "good", "feedback": "обратная связь"}],
  "performance_metrics": {
    "confidence": "...",
    "answering_patterns": "...",
    "clarity_and_completeness_within_time": "..."
  }
}`

// EvaluationSystem возвращает системный промпт итоговой оценки
func EvaluationSystem(role string, perQuestion time.Duration) string {
	if role == "" {
		role = "инженера"
	}
	return fmt.Sprintf(evaluationSystemTemplate, role, humanDuration(perQuestion))
}

// Evaluation перечисляет вопросы и ответы для разбора
func Evaluation(answers []storage.Answer) string {
	if len(answers) == 0 {
		return "Кандидат не ответил ни на один вопрос."
	}

	var prompt strings.Builder
	prompt.WriteString("ВОПРОСЫ И ОТВЕТЫ:\n")
	for i, a := range answers {
		prompt.WriteString(fmt.Sprintf("%d. Вопрос: %s\n", i+1, a.Question))
		prompt.WriteString(fmt.Sprintf("   Ответ: %s\n\n", answerText(a)))
	}
	return prompt.String()
}
