package storage

// Clone возвращает глубокую копию сессии
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	out := *s
	if s.Deadline != nil {
		d := *s.Deadline
		out.Deadline = &d
	}
	out.QuestionCompanies = cloneStrings(s.QuestionCompanies)

	if s.Answers != nil {
		out.Answers = make([]Answer, len(s.Answers))
		for i, a := range s.Answers {
			a.Companies = cloneStrings(a.Companies)
			out.Answers[i] = a
		}
	}

	if s.Candidate != nil {
		c := *s.Candidate
		c.Companies = cloneStrings(s.Candidate.Companies)
		out.Candidate = &c
	}

	if s.Evaluation != nil {
		e := *s.Evaluation
		if s.Evaluation.Reviews != nil {
			e.Reviews = append([]AnswerReview(nil), s.Evaluation.Reviews...)
		}
		if s.Evaluation.Metrics != nil {
			m := *s.Evaluation.Metrics
			e.Metrics = &m
		}
		out.Evaluation = &e
	}

	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
