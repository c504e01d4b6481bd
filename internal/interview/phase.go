package interview

import (
	"fmt"

	"interview-engine/internal/storage"
)

// validTransitions правила переходов конечного автомата сессии
var validTransitions = map[storage.Phase][]storage.Phase{
	storage.PhaseCreated: {
		storage.PhaseAskingQuestion,
	},
	storage.PhaseAskingQuestion: {
		storage.PhaseAwaitingAnswer,
	},
	storage.PhaseAwaitingAnswer: {
		storage.PhaseAnswerReceived,
		storage.PhaseTimedOut,
		storage.PhaseFinished, // end или abort до ответа
	},
	storage.PhaseAnswerReceived: {
		storage.PhaseAskingQuestion,
		storage.PhaseFinished,
	},
	storage.PhaseTimedOut: {
		storage.PhaseAskingQuestion,
		storage.PhaseFinished,
	},
	storage.PhaseFinished: {
		// конечное состояние
	},
}

// IsValidTransition проверяет допустимость перехода между фазами
func IsValidTransition(from, to storage.Phase) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transition переводит сессию в новую фазу или сообщает о нарушении инварианта
func transition(s *storage.Session, to storage.Phase) error {
	if !IsValidTransition(s.Phase, to) {
		return fmt.Errorf("%w: переход %s -> %s для сессии %s", ErrInvariant, s.Phase, to, s.ID)
	}
	s.Phase = to
	return nil
}

// checkInvariants проверяет согласованность сессии перед записью
func checkInvariants(s *storage.Session, questionCount int) error {
	switch {
	case (s.Deadline != nil) != (s.Phase == storage.PhaseAwaitingAnswer):
		return fmt.Errorf("%w: дедлайн %v в фазе %s", ErrInvariant, s.Deadline, s.Phase)
	case s.QuestionIndex < 0 || s.QuestionIndex >= questionCount:
		return fmt.Errorf("%w: индекс вопроса %d вне диапазона [0, %d)", ErrInvariant, s.QuestionIndex, questionCount)
	case len(s.Answers) > questionCount:
		return fmt.Errorf("%w: ответов %d больше числа вопросов %d", ErrInvariant, len(s.Answers), questionCount)
	case s.Phase == storage.PhaseAwaitingAnswer && len(s.Answers) != s.QuestionIndex:
		return fmt.Errorf("%w: ответов %d при индексе вопроса %d", ErrInvariant, len(s.Answers), s.QuestionIndex)
	}
	return nil
}
