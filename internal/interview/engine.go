// Package interview ведет сессии интервью: выдает вопросы по правилам формата,
// принимает ответы с учетом дедлайна и формирует итоговую оценку.
//
// Каждый вызов загружает сессию из хранилища, принимает решение и записывает
// результат через сравнение версий. Вызовы одной сессии внутри процесса
// выполняются строго по очереди.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"interview-engine/internal/config"
	"interview-engine/internal/metrics"
	"interview-engine/internal/operations"
	"interview-engine/internal/storage"
	"interview-engine/internal/timer"
	"interview-engine/internal/tools"
)

const scopeName = "interview-engine/internal/interview"

var tracer = otel.Tracer(scopeName)

const (
	TimeoutNotice  = "Время на ответ истекло, ответ не засчитан."
	FinishedNotice = "Вопросы закончились. Завершите интервью, чтобы получить оценку."
)

// Dependencies внешние сервисы движка
type Dependencies struct {
	Rules      *config.RuleSet
	Store      storage.Store
	Generator  Generator
	Timers     *timer.Manager
	Tools      *tools.Registry
	Operations *operations.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	NewID      func() string
}

// Engine конечный автомат сессий интервью
type Engine struct {
	rules      *config.RuleSet
	store      storage.Store
	generator  Generator
	timers     *timer.Manager
	tools      *tools.Registry
	operations *operations.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	newID      func() string
	locks      *sessionLocks
}

func New(deps Dependencies) (*Engine, error) {
	if deps.Rules == nil {
		return nil, fmt.Errorf("new engine: %w", ErrMissingRules)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("new engine: %w", ErrMissingStore)
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("new engine: %w", ErrMissingGenerator)
	}
	if deps.Timers == nil {
		deps.Timers = timer.New(nil, 0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Operations == nil {
		deps.Operations = operations.NewDispatcher(deps.Logger)
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	return &Engine{
		rules:      deps.Rules,
		store:      deps.Store,
		generator:  deps.Generator,
		timers:     deps.Timers,
		tools:      deps.Tools,
		operations: deps.Operations,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		newID:      deps.NewID,
		locks:      newSessionLocks(),
	}, nil
}

// Config дескриптор сессии, клиент передает его в каждом вызове после start
type Config struct {
	SessionID  string    `json:"session_id"`
	FormatName string    `json:"format_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Turn ответ на start и next
type Turn struct {
	Config        Config        `json:"interview_config"`
	Message       string        `json:"message"`
	Phase         storage.Phase `json:"phase"`
	QuestionIndex int           `json:"current_question_index"`
	// Deadline объявленный срок ответа. Ответ засчитывается до AcceptUntil,
	// то есть с допуском answer_grace поверх Deadline.
	Deadline      *time.Time    `json:"question_deadline,omitempty"`
	AcceptUntil   *time.Time    `json:"answer_accepted_until,omitempty"`
	TimedOut      bool          `json:"timed_out,omitempty"`
}

// Finished сообщает, что вопросов больше нет и пора вызывать end
func (t Turn) Finished() bool {
	return t.Phase == storage.PhaseFinished
}

type startOptions struct {
	candidate *storage.Candidate
}

// StartOption настраивает новую сессию
type StartOption func(*startOptions)

// WithCandidate сохраняет профиль кандидата в сессии для генератора вопросов
func WithCandidate(c storage.Candidate) StartOption {
	return func(o *startOptions) {
		o.candidate = &c
	}
}

// Formats возвращает форматы из правил, отсортированные по имени
func (e *Engine) Formats() []config.Format {
	names := e.rules.Names()
	out := make([]config.Format, 0, len(names))
	for _, name := range names {
		f, _ := e.rules.Lookup(name)
		out = append(out, f)
	}
	return out
}

// Start создает сессию и выдает первый вопрос
func (e *Engine) Start(ctx context.Context, formatName string, opts ...StartOption) (turn Turn, err error) {
	ctx, span := tracer.Start(ctx, "interview.start",
		trace.WithAttributes(attribute.String("interview.format", formatName)))
	defer func() { e.endSpan(span, err) }()

	format, ok := e.rules.Lookup(formatName)
	if !ok {
		return Turn{}, fmt.Errorf("%w: %q", ErrUnknownFormat, formatName)
	}
	if format.QuestionCount <= 0 {
		return Turn{}, fmt.Errorf("%w: %q", ErrInvalidFormat, formatName)
	}

	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := e.timers.Now()
	s := &storage.Session{
		ID:         e.newID(),
		FormatName: format.Name,
		CreatedAt:  now,
		UpdatedAt:  now,
		Phase:      storage.PhaseCreated,
		Status:     storage.StatusActive,
		Answers:    []storage.Answer{},
		Candidate:  o.candidate,
	}
	span.SetAttributes(attribute.String("session.id", s.ID))

	if err := transition(s, storage.PhaseAskingQuestion); err != nil {
		return Turn{}, err
	}
	draft, err := e.generateQuestion(ctx, s, format)
	if err != nil {
		return Turn{}, err
	}
	deadline := e.timers.Arm(s.ID, format.TimePerQuestion)
	defer func() {
		if err != nil {
			e.timers.Disarm(s.ID)
		}
	}()
	if err := e.askQuestion(s, format, draft, deadline); err != nil {
		return Turn{}, err
	}
	if err := checkInvariants(s, format.QuestionCount); err != nil {
		return Turn{}, err
	}

	if err := e.store.Create(ctx, s); err != nil {
		return Turn{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	e.metrics.IncrementInterviewsStarted(format.Name)
	e.metrics.IncrementQuestionsAsked(format.Name)
	e.logger.InfoContext(ctx, "interview started", "session_id", s.ID, "format", format.Name)

	return e.newTurn(s, draft.Text, false), nil
}

// Next принимает ответ на текущий вопрос и выдает следующий.
// Если дедлайн уже истек, ответ не засчитывается независимо от текста.
func (e *Engine) Next(ctx context.Context, cfg Config, message string) (turn Turn, err error) {
	ctx, span := tracer.Start(ctx, "interview.next",
		trace.WithAttributes(attribute.String("session.id", cfg.SessionID)))
	defer func() { e.endSpan(span, err) }()

	unlock := e.locks.lock(cfg.SessionID)
	defer unlock()

	s, err := e.load(ctx, cfg.SessionID)
	if err != nil {
		return Turn{}, err
	}
	if s.Status != storage.StatusActive {
		return Turn{}, fmt.Errorf("%w: статус %s", ErrSessionAlreadyFinished, s.Status)
	}
	if s.Phase == storage.PhaseFinished {
		return Turn{}, ErrInterviewAlreadyFinished
	}
	if s.Phase != storage.PhaseAwaitingAnswer || s.Deadline == nil {
		return Turn{}, fmt.Errorf("%w: активная сессия %s в фазе %s без ожидания ответа", ErrInvariant, s.ID, s.Phase)
	}

	format, ok := e.rules.Lookup(s.FormatName)
	if !ok {
		return Turn{}, fmt.Errorf("%w: %q", ErrUnknownFormat, s.FormatName)
	}

	// Сохраненный дедлайн главнее локальной таблицы, она могла пережить рестарт или отстать
	asked := *s.Deadline
	e.timers.Restore(s.ID, asked)
	expired := e.timers.HasExpired(s.ID)

	expected := s.Version
	now := e.timers.Now()
	if err := e.recordAnswer(s, message, expired, now); err != nil {
		return Turn{}, err
	}

	var draft QuestionDraft
	var deadline time.Time
	if s.QuestionIndex+1 >= format.QuestionCount {
		if err := transition(s, storage.PhaseFinished); err != nil {
			return Turn{}, err
		}
		clearQuestion(s)
	} else {
		if err := transition(s, storage.PhaseAskingQuestion); err != nil {
			return Turn{}, err
		}
		s.QuestionIndex++
		draft, err = e.generateQuestion(ctx, s, format)
		if err != nil {
			return Turn{}, err
		}
		deadline = e.timers.Arm(s.ID, format.TimePerQuestion)
		// Несохраненный переход возвращает таблице дедлайн из хранилища
		defer func() {
			if err != nil {
				e.timers.Restore(s.ID, asked)
			}
		}()
		if err := e.askQuestion(s, format, draft, deadline); err != nil {
			return Turn{}, err
		}
	}
	if err := checkInvariants(s, format.QuestionCount); err != nil {
		return Turn{}, err
	}

	if err := e.commit(ctx, expected, s); err != nil {
		return Turn{}, err
	}

	if expired {
		e.metrics.IncrementAnswersTimedOut(format.Name)
	}

	if s.Phase == storage.PhaseFinished {
		e.timers.Disarm(s.ID)
		e.logger.InfoContext(ctx, "all questions answered", "session_id", s.ID, "answers", len(s.Answers))
		return e.newTurn(s, withTimeoutNotice(FinishedNotice, expired), expired), nil
	}

	e.metrics.IncrementQuestionsAsked(format.Name)
	e.logger.DebugContext(ctx, "question asked", "session_id", s.ID, "index", s.QuestionIndex, "timed_out", expired)
	return e.newTurn(s, withTimeoutNotice(draft.Text, expired), expired), nil
}

// EndResult итог end: оценка и результаты операций по их типам
type EndResult struct {
	Evaluation *storage.Evaluation
	Operations map[string]operations.Result
}

// End завершает интервью и выполняет операции.
// Повторный вызов возвращает сохраненную оценку без обращения к генератору.
func (e *Engine) End(ctx context.Context, cfg Config, ops []operations.Spec) (res EndResult, err error) {
	ctx, span := tracer.Start(ctx, "interview.end",
		trace.WithAttributes(
			attribute.String("session.id", cfg.SessionID),
			attribute.Int("interview.operations", len(ops)),
		))
	defer func() { e.endSpan(span, err) }()

	s, err := e.complete(ctx, cfg.SessionID)
	if err != nil {
		return EndResult{}, err
	}

	res.Evaluation = s.Evaluation
	if len(ops) > 0 {
		res.Operations = e.operations.Run(ctx, operations.NewReport(s), ops)
	}
	return res, nil
}

// complete фиксирует оценку под блокировкой сессии. Операции выполняются уже без нее.
func (e *Engine) complete(ctx context.Context, id string) (*storage.Session, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case storage.StatusCompleted:
		if s.Evaluation == nil {
			return nil, fmt.Errorf("%w: завершенная сессия %s без оценки", ErrInvariant, s.ID)
		}
		return s, nil
	case storage.StatusAborted:
		return nil, fmt.Errorf("%w: статус %s", ErrSessionAlreadyFinished, s.Status)
	}

	format, known := e.rules.Lookup(s.FormatName)
	if !known {
		format = config.Format{Name: s.FormatName}
	}

	expected := s.Version
	now := e.timers.Now()
	timedOut := false

	if s.Phase == storage.PhaseAwaitingAnswer && s.Deadline != nil {
		e.timers.Restore(s.ID, *s.Deadline)
		if e.timers.HasExpired(s.ID) {
			// Истекший вопрос засчитывается как пропущенный, неотвеченный просто отбрасывается
			if err := e.recordAnswer(s, "", true, now); err != nil {
				return nil, err
			}
			timedOut = true
		}
	}
	if s.Phase != storage.PhaseFinished {
		if err := transition(s, storage.PhaseFinished); err != nil {
			return nil, err
		}
	}
	clearQuestion(s)

	eval, err := e.evaluate(ctx, s, format)
	if err != nil {
		return nil, err
	}
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = now
	}
	s.Evaluation = eval
	s.Status = storage.StatusCompleted
	s.UpdatedAt = now

	if known {
		if err := checkInvariants(s, format.QuestionCount); err != nil {
			return nil, err
		}
	}
	if err := e.commit(ctx, expected, s); err != nil {
		return nil, err
	}
	e.timers.Disarm(s.ID)

	if timedOut {
		e.metrics.IncrementAnswersTimedOut(format.Name)
	}
	e.metrics.IncrementInterviewsCompleted(format.Name)
	e.logger.InfoContext(ctx, "interview completed", "session_id", s.ID, "answers", len(s.Answers))

	return s, nil
}

// Abort прерывает активную сессию без оценки
func (e *Engine) Abort(ctx context.Context, cfg Config) (view View, err error) {
	ctx, span := tracer.Start(ctx, "interview.abort",
		trace.WithAttributes(attribute.String("session.id", cfg.SessionID)))
	defer func() { e.endSpan(span, err) }()

	unlock := e.locks.lock(cfg.SessionID)
	defer unlock()

	s, err := e.load(ctx, cfg.SessionID)
	if err != nil {
		return View{}, err
	}
	if s.Status != storage.StatusActive {
		return View{}, fmt.Errorf("%w: статус %s", ErrSessionAlreadyFinished, s.Status)
	}

	expected := s.Version
	if s.Phase != storage.PhaseFinished {
		if err := transition(s, storage.PhaseFinished); err != nil {
			return View{}, err
		}
	}
	clearQuestion(s)
	s.Status = storage.StatusAborted
	s.UpdatedAt = e.timers.Now()

	if err := e.commit(ctx, expected, s); err != nil {
		return View{}, err
	}
	e.timers.Disarm(s.ID)

	e.metrics.IncrementInterviewsAborted(s.FormatName)
	e.logger.InfoContext(ctx, "interview aborted", "session_id", s.ID)

	return e.view(s)
}

// Status возвращает состояние сессии только для чтения
func (e *Engine) Status(ctx context.Context, cfg Config) (View, error) {
	s, err := e.load(ctx, cfg.SessionID)
	if err != nil {
		return View{}, err
	}
	return e.view(s)
}

// RunTimerSweep раз в interval убирает из таблицы таймеров дедлайны брошенных сессий,
// истекшие больше interval назад. Решения об истечении всегда сверяются с хранилищем,
// поэтому удаление записи не меняет ответ next или end.
func (e *Engine) RunTimerSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.timers.Prune(interval); n > 0 {
				e.logger.Debug("stale timers pruned", "count", n, "armed", e.timers.Armed())
			}
		}
	}
}

func (e *Engine) recordAnswer(s *storage.Session, message string, expired bool, now time.Time) error {
	answer := storage.Answer{
		Question:     s.QuestionText,
		QuestionType: s.QuestionType,
		Companies:    s.QuestionCompanies,
		AnsweredAt:   now,
	}

	next := storage.PhaseAnswerReceived
	if expired {
		next = storage.PhaseTimedOut
		answer.TimedOut = true
	} else {
		answer.Answer = message
	}
	if err := transition(s, next); err != nil {
		return err
	}

	s.Answers = append(s.Answers, answer)
	s.Deadline = nil
	s.UpdatedAt = now
	return nil
}

func (e *Engine) askQuestion(s *storage.Session, format config.Format, draft QuestionDraft, deadline time.Time) error {
	if err := transition(s, storage.PhaseAwaitingAnswer); err != nil {
		return err
	}

	s.QuestionText = draft.Text
	s.QuestionType = draft.Type
	if s.QuestionType == "" {
		s.QuestionType = string(format.QuestionType)
	}
	s.QuestionCompanies = draft.Companies
	s.Deadline = &deadline
	return nil
}

func clearQuestion(s *storage.Session) {
	s.QuestionText = ""
	s.QuestionType = ""
	s.QuestionCompanies = nil
	s.Deadline = nil
}

// generateQuestion вызывает генератор для вопроса s.QuestionIndex.
// Запрошенные инструменты выполняются один раз, их результаты уходят во второй вызов.
func (e *Engine) generateQuestion(ctx context.Context, s *storage.Session, format config.Format) (QuestionDraft, error) {
	req := QuestionRequest{
		SessionID: s.ID,
		Format:    format,
		Index:     s.QuestionIndex,
		Candidate: s.Candidate,
		Answers:   s.Answers,
	}
	if e.tools != nil {
		req.Tools = e.tools.Specs()
	}

	draft, err := e.callGenerator(ctx, "question", req)
	if err != nil {
		return QuestionDraft{}, err
	}

	if len(draft.ToolCalls) > 0 {
		req.ToolResults = e.invokeTools(ctx, draft.ToolCalls)
		req.Tools = nil
		draft, err = e.callGenerator(ctx, "question", req)
		if err != nil {
			return QuestionDraft{}, err
		}
		draft.ToolCalls = nil
	}

	if strings.TrimSpace(draft.Text) == "" {
		return QuestionDraft{}, fmt.Errorf("%w: пустой текст вопроса", ErrGenerator)
	}
	return draft, nil
}

func (e *Engine) callGenerator(ctx context.Context, kind string, req QuestionRequest) (QuestionDraft, error) {
	started := time.Now()
	draft, err := e.generator.GenerateQuestion(ctx, req)
	e.metrics.ObserveGenerator(kind, err != nil, time.Since(started))
	if err != nil {
		return QuestionDraft{}, fmt.Errorf("%w: %w", ErrGenerator, err)
	}
	return draft, nil
}

func (e *Engine) evaluate(ctx context.Context, s *storage.Session, format config.Format) (*storage.Evaluation, error) {
	started := time.Now()
	eval, err := e.generator.Evaluate(ctx, EvaluationRequest{
		SessionID: s.ID,
		Format:    format,
		Candidate: s.Candidate,
		Answers:   s.Answers,
	})
	e.metrics.ObserveGenerator("evaluation", err != nil, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerator, err)
	}
	if eval == nil {
		return nil, fmt.Errorf("%w: пустая оценка", ErrGenerator)
	}
	return eval, nil
}

// invokeTools выполняет вызовы по порядку. Неизвестный инструмент становится текстом ошибки для генератора.
func (e *Engine) invokeTools(ctx context.Context, calls []tools.Call) []tools.Result {
	results := make([]tools.Result, 0, len(calls))
	for _, call := range calls {
		var (
			res tools.Result
			err error
		)
		if e.tools == nil {
			err = fmt.Errorf("%w: %q", tools.ErrUnknownTool, call.Name)
		} else {
			res, err = e.tools.Invoke(ctx, call)
		}
		if err != nil {
			res = tools.Result{CallID: call.ID, Name: call.Name, Error: err.Error()}
		}
		results = append(results, res)
	}
	return results
}

func (e *Engine) load(ctx context.Context, id string) (*storage.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: пустой ID", ErrSessionNotFound)
	}

	s, err := e.store.Load(ctx, id)
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return s, nil
}

func (e *Engine) commit(ctx context.Context, expected int64, s *storage.Session) error {
	err := e.store.CompareAndSwap(ctx, expected, s)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrVersionConflict):
		return fmt.Errorf("%w: %w", ErrConcurrentUpdate, err)
	case errors.Is(err, storage.ErrSessionNotFound):
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	default:
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
}

func (e *Engine) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrInvariant) {
			e.logger.Error("session invariant violated", "error", err)
		}
	}
	span.End()
}

func (e *Engine) newTurn(s *storage.Session, message string, timedOut bool) Turn {
	turn := Turn{
		Config: Config{
			SessionID:  s.ID,
			FormatName: s.FormatName,
			CreatedAt:  s.CreatedAt,
		},
		Message:       message,
		Phase:         s.Phase,
		QuestionIndex: s.QuestionIndex,
		Deadline:      s.Deadline,
		TimedOut:      timedOut,
	}
	if s.Deadline != nil {
		until := e.timers.AcceptUntil(*s.Deadline)
		turn.AcceptUntil = &until
	}
	return turn
}

func withTimeoutNotice(message string, timedOut bool) string {
	if !timedOut {
		return message
	}
	return TimeoutNotice + "\n\n" + message
}
