package interview

import (
	"context"

	"interview-engine/internal/config"
	"interview-engine/internal/storage"
	"interview-engine/internal/tools"
)

// Generator формирует тексты вопросов и итоговую оценку.
// Реализации не хранят состояние сессии: все нужное приходит в запросе.
type Generator interface {
	GenerateQuestion(ctx context.Context, req QuestionRequest) (QuestionDraft, error)
	Evaluate(ctx context.Context, req EvaluationRequest) (*storage.Evaluation, error)
}

// QuestionRequest контекст для генерации вопроса с номером Index
type QuestionRequest struct {
	SessionID string
	Format    config.Format
	Index     int
	Candidate *storage.Candidate
	Answers   []storage.Answer

	// Tools доступные инструменты. Пусто во втором проходе, когда результаты уже получены.
	Tools []tools.Tool
	// ToolResults результаты вызовов, запрошенных в первом проходе
	ToolResults []tools.Result
}

// QuestionDraft ответ генератора: готовый вопрос либо запрос инструментов
type QuestionDraft struct {
	Text      string
	Type      string
	Companies []string
	ToolCalls []tools.Call
}

// EvaluationRequest все ответы сессии для итоговой оценки
type EvaluationRequest struct {
	SessionID string
	Format    config.Format
	Candidate *storage.Candidate
	Answers   []storage.Answer
}
