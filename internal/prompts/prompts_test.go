package prompts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"interview-engine/internal/storage"
	"interview-engine/internal/tools"
)

func TestQuestionSystem(t *testing.T) {
	text := QuestionSystem{
		Role:            "backend",
		Companies:       []string{"acme", "globex"},
		QuestionType:    "coding",
		QuestionCount:   5,
		TimePerQuestion: 10 * time.Minute,
	}.String()

	assert.Contains(t, text, "роль: backend")
	assert.Contains(t, text, "Всего вопросов: 5")
	assert.Contains(t, text, "10 мин.")
	assert.Contains(t, text, "acme, globex")
}

func TestQuestionIncludesHistoryAndTools(t *testing.T) {
	text := Question(2, 3, []storage.Answer{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", TimedOut: true},
	}, []tools.Result{
		{Name: "search_internet", Text: "новости"},
		{Name: "broken", Error: "сбой"},
	}, true)

	assert.Contains(t, text, "Ответ 1: a1")
	assert.Contains(t, text, "время истекло")
	assert.Contains(t, text, "search_internet: новости")
	assert.Contains(t, text, "broken: ошибка: сбой")
	assert.Contains(t, text, "вопрос 3 из 3")
	assert.Contains(t, text, "последний вопрос")
}

func TestEvaluation(t *testing.T) {
	assert.Contains(t, Evaluation(nil), "ни на один")
	assert.Contains(t, Evaluation([]storage.Answer{{Question: "q", Answer: ""}}), "(пустой ответ)")
	assert.Contains(t, EvaluationSystem("", 90*time.Second), "1m30s")
}
