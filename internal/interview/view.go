package interview

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"interview-engine/internal/storage"
)

// View состояние сессии для чтения клиентом
type View struct {
	ID            string              `json:"session_id"`
	FormatName    string              `json:"format_name"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Phase         storage.Phase       `json:"phase"`
	Status        storage.Status      `json:"status"`
	QuestionIndex int                 `json:"current_question_index"`
	QuestionText  string              `json:"current_question_text,omitempty"`
	Deadline      *time.Time          `json:"question_deadline,omitempty"`
	AcceptUntil   *time.Time          `json:"answer_accepted_until,omitempty"`
	Answers       []storage.Answer    `json:"answers"`
	Candidate     *storage.Candidate  `json:"candidate,omitempty"`
	Evaluation    *storage.Evaluation `json:"evaluation,omitempty"`
	Version       int64               `json:"version"`
}

// view копирует сессию и подставляет вычисляемый статус expired_wait
func (e *Engine) view(s *storage.Session) (View, error) {
	var v View
	if err := copier.Copy(&v, s); err != nil {
		return View{}, fmt.Errorf("%w: копирование сессии %s: %w", ErrInvariant, s.ID, err)
	}
	if s.Deadline != nil {
		until := e.timers.AcceptUntil(*s.Deadline)
		v.AcceptUntil = &until
	}
	if s.Status == storage.StatusActive && s.Deadline != nil && e.timers.Expired(*s.Deadline) {
		v.Status = storage.StatusExpiredWait
	}
	return v, nil
}

// MarshalJSON кладет результаты операций рядом с оценкой:
// {"evaluation": {...}, "email": {"result": "..."}}
func (r EndResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Operations)+1)
	for opType, res := range r.Operations {
		out[opType] = res
	}
	out["evaluation"] = r.Evaluation
	return json.Marshal(out)
}
