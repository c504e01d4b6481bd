package interviewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/storage"
)

var scriptedQuestions = map[config.QuestionType][]string{
	config.QuestionBehavioral: {
		"Расскажите о проекте, которым вы гордитесь больше всего.",
		"Опишите конфликт в команде и как вы его разрешили.",
		"Расскажите о случае, когда вы ошиблись в оценке сроков.",
		"Как вы принимаете решения при неполной информации?",
	},
	config.QuestionCoding: {
		"Напишите функцию, которая проверяет, является ли строка палиндромом.",
		"Реализуйте LRU кеш с операциями get и put за O(1).",
		"Найдите первый неповторяющийся символ в строке.",
		"Объедините k отсортированных списков в один.",
	},
}

// ScriptedGenerator детерминированный генератор без обращения к модели.
// Используется для локальной отладки и демонстраций.
type ScriptedGenerator struct {
	Now func() time.Time
}

func (g *ScriptedGenerator) GenerateQuestion(_ context.Context, req interview.QuestionRequest) (interview.QuestionDraft, error) {
	qType := req.Format.QuestionType
	if qType == config.QuestionMixed || qType == "" {
		qType = config.QuestionBehavioral
		if req.Index%2 == 1 {
			qType = config.QuestionCoding
		}
	}

	bank := scriptedQuestions[qType]
	text := bank[req.Index%len(bank)]
	if req.Candidate != nil && req.Candidate.Role != "" && req.Index == 0 {
		text = fmt.Sprintf("%s (роль: %s)", text, req.Candidate.Role)
	}

	draft := interview.QuestionDraft{Text: text, Type: string(qType)}
	if req.Candidate != nil {
		draft.Companies = req.Candidate.Companies
	}
	return draft, nil
}

func (g *ScriptedGenerator) Evaluate(_ context.Context, req interview.EvaluationRequest) (*storage.Evaluation, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	eval := &storage.Evaluation{CreatedAt: now().UTC()}
	answered := 0
	for _, a := range req.Answers {
		review := storage.AnswerReview{Question: a.Question}
		switch {
		case a.TimedOut:
			review.Rating, review.Feedback = "bad", "Время на ответ истекло."
		case len(strings.Fields(a.Answer)) < 5:
			review.Rating, review.Feedback = "average", "Ответ слишком краткий, раскройте детали."
			answered++
		default:
			review.Rating, review.Feedback = "good", "Ответ развернутый."
			answered++
		}
		eval.Reviews = append(eval.Reviews, review)
	}

	eval.Summary = fmt.Sprintf("Отвечено %d из %d вопросов.", answered, len(req.Answers))
	eval.Verdict = "Not Capable"
	if len(req.Answers) > 0 && answered*2 > len(req.Answers) {
		eval.Verdict = "Capable"
	}
	return eval, nil
}
