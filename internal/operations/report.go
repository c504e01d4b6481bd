package operations

import (
	"fmt"
	"strings"
	"time"

	"interview-engine/internal/storage"
)

// Report данные завершенного интервью, доступные операциям и шаблонам
type Report struct {
	SessionID   string
	FormatName  string
	Candidate   *storage.Candidate
	Answers     []storage.Answer
	Evaluation  *storage.Evaluation
	CompletedAt time.Time
}

// NewReport собирает отчет по сессии с итоговой оценкой
func NewReport(s *storage.Session) *Report {
	return &Report{
		SessionID:   s.ID,
		FormatName:  s.FormatName,
		Candidate:   s.Candidate,
		Answers:     s.Answers,
		Evaluation:  s.Evaluation,
		CompletedAt: s.UpdatedAt,
	}
}

// Text форматирует оценку для письма или сообщения
func (r *Report) Text() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Интервью %s (формат %s)\n", r.SessionID, r.FormatName))
	if r.Candidate != nil && r.Candidate.Name != "" {
		b.WriteString(fmt.Sprintf("Кандидат: %s", r.Candidate.Name))
		if r.Candidate.Role != "" {
			b.WriteString(fmt.Sprintf(", роль: %s", r.Candidate.Role))
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("Ответов: %d\n\n", len(r.Answers)))

	if r.Evaluation == nil {
		b.WriteString("Оценка отсутствует.\n")
		return b.String()
	}

	b.WriteString(r.Evaluation.Summary)
	b.WriteString("\n")
	if r.Evaluation.Verdict != "" {
		b.WriteString(fmt.Sprintf("\nВердикт: %s\n", r.Evaluation.Verdict))
	}
	for i, review := range r.Evaluation.Reviews {
		b.WriteString(fmt.Sprintf("\n%d. %s\n   Оценка: %s\n   %s\n", i+1, review.Question, review.Rating, review.Feedback))
	}
	return b.String()
}

// InterviewResult архивная выгрузка отчета
func (r *Report) InterviewResult() *storage.InterviewResult {
	return storage.NewInterviewResult(&storage.Session{
		ID:         r.SessionID,
		FormatName: r.FormatName,
		UpdatedAt:  r.CompletedAt,
		Candidate:  r.Candidate,
		Answers:    r.Answers,
		Evaluation: r.Evaluation,
	})
}
