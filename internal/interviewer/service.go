package interviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/prompts"
	"interview-engine/internal/storage"
)

// Service генерирует вопросы и оценку через Completer
type Service struct {
	completer   Completer
	budget      *TokenBudget
	maxTokens   int
	temperature float64
	logger      *slog.Logger
	now         func() time.Time
}

// Option настраивает Service
type Option func(*Service)

func WithBudget(b *TokenBudget) Option { return func(s *Service) { s.budget = b } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New создает сервис интервьюера
func New(completer Completer, llm config.LLMConfig, opts ...Option) *Service {
	s := &Service{
		completer:   completer,
		maxTokens:   llm.MaxTokens,
		temperature: llm.Temperature,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type questionReply struct {
	Question  string   `json:"question"`
	Type      string   `json:"type"`
	Companies []string `json:"companies"`
}

// GenerateQuestion формирует очередной вопрос или запрашивает инструменты
func (s *Service) GenerateQuestion(ctx context.Context, req interview.QuestionRequest) (interview.QuestionDraft, error) {
	system := prompts.QuestionSystem{
		QuestionType:    string(req.Format.QuestionType),
		QuestionCount:   req.Format.QuestionCount,
		TimePerQuestion: req.Format.TimePerQuestion,
		Description:     req.Format.Description,
	}
	if req.Candidate != nil {
		system.Role = req.Candidate.Role
		system.Companies = req.Candidate.Companies
	}

	history := s.budget.Fit(req.Answers)
	if dropped := len(req.Answers) - len(history); dropped > 0 {
		s.logger.Debug("история сокращена по лимиту токенов",
			"session_id", req.SessionID, "dropped", dropped)
	}

	resp, err := s.completer.Complete(ctx, Request{
		System:      system.String(),
		Prompt:      prompts.Question(req.Index, req.Format.QuestionCount, history, req.ToolResults, len(req.Tools) > 0),
		Tools:       req.Tools,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return interview.QuestionDraft{}, err
	}

	if len(resp.ToolCalls) > 0 && len(req.Tools) > 0 {
		return interview.QuestionDraft{ToolCalls: resp.ToolCalls}, nil
	}
	return parseQuestion(resp.Text), nil
}

// Evaluate разбирает все ответы и формирует итоговую оценку
func (s *Service) Evaluate(ctx context.Context, req interview.EvaluationRequest) (*storage.Evaluation, error) {
	role := ""
	if req.Candidate != nil {
		role = req.Candidate.Role
	}

	resp, err := s.completer.Complete(ctx, Request{
		System:      prompts.EvaluationSystem(role, req.Format.TimePerQuestion),
		Prompt:      prompts.Evaluation(req.Answers),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, err
	}

	eval, err := parseEvaluation(resp.Text)
	if err != nil {
		return nil, err
	}
	eval.CreatedAt = s.now().UTC()
	return eval, nil
}

// parseQuestion разбирает JSON ответ модели, иначе весь текст считается вопросом
func parseQuestion(raw string) interview.QuestionDraft {
	cleaned := cleanJSONResponse(raw)

	var reply questionReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err == nil && strings.TrimSpace(reply.Question) != "" {
		return interview.QuestionDraft{
			Text:      strings.TrimSpace(reply.Question),
			Type:      reply.Type,
			Companies: reply.Companies,
		}
	}
	return interview.QuestionDraft{Text: strings.TrimSpace(raw)}
}

// parseEvaluation разбирает JSON оценки. Невалидный JSON сохраняется как summary.
func parseEvaluation(raw string) (*storage.Evaluation, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("пустой ответ модели при оценке")
	}

	var eval storage.Evaluation
	if err := json.Unmarshal([]byte(cleanJSONResponse(text)), &eval); err != nil || (eval.Summary == "" && len(eval.Reviews) == 0) {
		return &storage.Evaluation{Summary: text}, nil
	}
	return &eval, nil
}

// cleanJSONResponse удаляет markdown обрамление и лишний текст вокруг JSON объекта
func cleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}
