// Package prompts собирает тексты запросов к модели для вопросов и итоговой оценки.
package prompts

import (
	"fmt"
	"strings"
	"time"

	"interview-engine/internal/storage"
	"interview-engine/internal/tools"
)

// QuestionSystem описывает роль интервьюера для формата
type QuestionSystem struct {
	Role            string
	Companies       []string
	QuestionType    string
	QuestionCount   int
	TimePerQuestion time.Duration
	Description     string
}

const questionSystemTemplate = `Ты опытный технический интервьюер. Ты проводишь собеседование на роль: %s.

ПРАВИЛА ИНТЕРВЬЮ:
- Всего вопросов: %d
- Тип вопросов: %s
- На ответ у кандидата %s, вопрос должен решаться за это время
- Задавай ровно один вопрос за раз, без подсказок и ответов
%s
ФОРМАТ ОТВЕТА (только JSON, без markdown):
{"question": "текст вопроса", "type": "тип вопроса", "companies": ["компании, которые задают такие вопросы"]}`

// String возвращает системный промпт генерации вопросов
func (q QuestionSystem) String() string {
	role := q.Role
	if role == "" {
		role = "не указана, выбери общие вопросы для инженера"
	}

	var extra strings.Builder
	if len(q.Companies) > 0 {
		extra.WriteString(fmt.Sprintf("- Учитывай стиль вопросов компаний: %s\n", strings.Join(q.Companies, ", ")))
	}
	if q.Description != "" {
		extra.WriteString(fmt.Sprintf("- Описание формата: %s\n", q.Description))
	}

	return fmt.Sprintf(questionSystemTemplate, role, q.QuestionCount, q.QuestionType,
		humanDuration(q.TimePerQuestion), extra.String())
}

// Question собирает пользовательскую часть запроса на вопрос с номером index
func Question(index, count int, history []storage.Answer, toolResults []tools.Result, toolsAvailable bool) string {
	var prompt strings.Builder

	if len(history) > 0 {
		prompt.WriteString("ПРЕДЫДУЩИЕ ВОПРОСЫ И ОТВЕТЫ:\n")
		for i, a := range history {
			prompt.WriteString(fmt.Sprintf("Вопрос %d: %s\n", i+1, a.Question))
			prompt.WriteString(fmt.Sprintf("Ответ %d: %s\n\n", i+1, answerText(a)))
		}
	}

	if len(toolResults) > 0 {
		prompt.WriteString("РЕЗУЛЬТАТЫ ИНСТРУМЕНТОВ:\n")
		for _, r := range toolResults {
			if r.Failed() {
				prompt.WriteString(fmt.Sprintf("- %s: ошибка: %s\n", r.Name, r.Error))
				continue
			}
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", r.Name, r.Text))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString(fmt.Sprintf("Сформулируй вопрос %d из %d.\n", index+1, count))
	prompt.WriteString("- Не повторяй уже заданные вопросы\n")
	prompt.WriteString("- Учитывай уровень, показанный в предыдущих ответах\n")
	if toolsAvailable {
		prompt.WriteString("- Если нужны свежие темы или данные, сначала вызови подходящий инструмент\n")
	}
	if index+1 == count {
		prompt.WriteString("ВНИМАНИЕ: Это последний вопрос интервью.\n")
	}

	return prompt.String()
}

func answerText(a storage.Answer) string {
	switch {
	case a.TimedOut:
		return "(время истекло, ответа нет)"
	case strings.TrimSpace(a.Answer) == "":
		return "(пустой ответ)"
	default:
		return a.Answer
	}
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "без ограничения времени"
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d мин.", int(d/time.Minute))
	}
	return d.String()
}
