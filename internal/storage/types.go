package storage

import "time"

// Phase этап конечного автомата сессии
type Phase string

const (
	PhaseCreated        Phase = "created"
	PhaseAskingQuestion Phase = "asking_question"
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	PhaseAnswerReceived Phase = "answer_received"
	PhaseTimedOut       Phase = "timed_out"
	PhaseFinished       Phase = "finished"
)

// Status жизненный статус сессии.
// StatusExpiredWait не хранится: он вычисляется при чтении для активной сессии с истекшим дедлайном.
type Status string

const (
	StatusActive      Status = "active"
	StatusExpiredWait Status = "expired_wait"
	StatusCompleted   Status = "completed"
	StatusAborted     Status = "aborted"
)

// Candidate данные кандидата, переданные при старте
type Candidate struct {
	Name      string   `json:"name,omitempty" bson:"name,omitempty"`
	Role      string   `json:"role,omitempty" bson:"role,omitempty"`
	Companies []string `json:"companies,omitempty" bson:"companies,omitempty"`
}

// Answer запись об одном вопросе и ответе на него
type Answer struct {
	Question     string    `json:"question" bson:"question"`
	QuestionType string    `json:"question_type,omitempty" bson:"question_type,omitempty"`
	Companies    []string  `json:"companies,omitempty" bson:"companies,omitempty"`
	Answer       string    `json:"answer" bson:"answer"`
	AnsweredAt   time.Time `json:"answered_at" bson:"answered_at"`
	TimedOut     bool      `json:"timed_out,omitempty" bson:"timed_out,omitempty"`
}

// AnswerReview оценка отдельного ответа
type AnswerReview struct {
	Question string `json:"question" bson:"question"`
	Rating   string `json:"rating" bson:"rating"`
	Feedback string `json:"feedback" bson:"feedback"`
}

// PerformanceMetrics сводные показатели кандидата за все интервью
type PerformanceMetrics struct {
	Confidence                       string `json:"confidence" bson:"confidence"`
	AnsweringPatterns                string `json:"answering_patterns" bson:"answering_patterns"`
	ClarityAndCompletenessWithinTime string `json:"clarity_and_completeness_within_time" bson:"clarity_and_completeness_within_time"`
}

// Evaluation итоговая оценка интервью, неизменна после создания
type Evaluation struct {
	Summary   string              `json:"summary" bson:"summary"`
	Verdict   string              `json:"verdict,omitempty" bson:"verdict,omitempty"`
	Reviews   []AnswerReview      `json:"reviews,omitempty" bson:"reviews,omitempty"`
	Metrics   *PerformanceMetrics `json:"performance_metrics,omitempty" bson:"performance_metrics,omitempty"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
}

// Session полная запись состояния сессии, хранится одной записью по ID
type Session struct {
	ID         string    `json:"session_id" bson:"_id"`
	FormatName string    `json:"format_name" bson:"format_name"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`

	Phase             Phase      `json:"phase" bson:"phase"`
	Status            Status     `json:"status" bson:"status"`
	QuestionIndex     int        `json:"current_question_index" bson:"current_question_index"`
	QuestionText      string     `json:"current_question_text" bson:"current_question_text"`
	QuestionType      string     `json:"current_question_type,omitempty" bson:"current_question_type,omitempty"`
	QuestionCompanies []string   `json:"current_question_companies,omitempty" bson:"current_question_companies,omitempty"`
	Deadline          *time.Time `json:"question_deadline,omitempty" bson:"question_deadline,omitempty"`

	Answers    []Answer    `json:"answers" bson:"answers"`
	Candidate  *Candidate  `json:"candidate,omitempty" bson:"candidate,omitempty"`
	Evaluation *Evaluation `json:"evaluation,omitempty" bson:"evaluation,omitempty"`

	Version int64 `json:"version" bson:"version"`
}

// InterviewResult архивная выгрузка завершенного интервью
type InterviewResult struct {
	InterviewID string      `json:"interview_id"`
	FormatName  string      `json:"format_name"`
	Timestamp   string      `json:"timestamp"`
	Candidate   *Candidate  `json:"candidate,omitempty"`
	Answers     []QA        `json:"questions_and_answers"`
	Evaluation  *Evaluation `json:"evaluation,omitempty"`
}

// QA представляет один вопрос и ответ
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	TimedOut bool   `json:"timed_out,omitempty"`
}
