package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"interview-engine/internal/interview"
	"interview-engine/internal/operations"
	"interview-engine/internal/storage"
)

type RateLimiter struct {
	requests map[int64][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) IsAllowed(userID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()

	if requests, exists := rl.requests[userID]; exists {
		var valid []time.Time
		for _, t := range requests {
			if now.Sub(t) < rl.window {
				valid = append(valid, t)
			}
		}
		rl.requests[userID] = valid
	}

	if len(rl.requests[userID]) >= rl.limit {
		return false
	}

	rl.requests[userID] = append(rl.requests[userID], now)
	return true
}

// Sender отправляет ответы пользователю, реализуется Bot
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Handler ведет интервью в чате поверх движка
type Handler struct {
	sender        Sender
	engine        *interview.Engine
	defaultFormat string
	endOps        []operations.Spec
	logger        *slog.Logger

	sessions      map[int64]*UserSession
	sessionsMutex sync.Mutex
	rateLimiter   *RateLimiter
}

// HandlerConfig параметры чат-фронта
type HandlerConfig struct {
	// DefaultFormat используется для /start без аргумента
	DefaultFormat string
	// EndOperations выполняются при /end, например архив результата
	EndOperations []operations.Spec
}

func NewHandler(sender Sender, engine *interview.Engine, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sender:        sender,
		engine:        engine,
		defaultFormat: cfg.DefaultFormat,
		endOps:        cfg.EndOperations,
		logger:        logger,
		sessions:      make(map[int64]*UserSession),
		rateLimiter:   NewRateLimiter(10, time.Minute),
	}
}

// RunCleanup удаляет неактивные привязки чатов до отмены ctx
func (h *Handler) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveSessions(time.Now().Add(-24 * time.Hour))
		}
	}
}

func (h *Handler) cleanupInactiveSessions(cutoff time.Time) {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()

	for uid, sess := range h.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(h.sessions, uid)
		}
	}
}

func (h *Handler) HandleUpdate(update Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}
	ctx := context.Background()
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	if !h.rateLimiter.IsAllowed(userID) {
		h.send(chatID, "⏳ Слишком много сообщений. Пожалуйста, подождите минуту.")
		return
	}

	session := h.getOrCreateSession(userID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, chatID, text, update.Message.From, session)
		return
	}
	h.handleUserInput(ctx, chatID, text, session)
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, text string, from *User, session *UserSession) {
	fields := strings.Fields(text)
	command, args := fields[0], fields[1:]

	switch command {
	case "/start":
		h.handleStartCommand(ctx, chatID, args, from, session)
	case "/help":
		h.handleHelpCommand(chatID)
	case "/formats":
		h.handleFormatsCommand(chatID)
	case "/status":
		h.handleStatusCommand(ctx, chatID, session)
	case "/end":
		h.handleEndCommand(ctx, chatID, session)
	case "/stop":
		h.handleStopCommand(ctx, chatID, session)
	default:
		h.send(chatID, "Неизвестная команда. Используйте /help для получения списка команд.")
	}
}

// handleStartCommand: /start [формат] [роль] [компании через запятую]
func (h *Handler) handleStartCommand(ctx context.Context, chatID int64, args []string, from *User, session *UserSession) {
	if session.State == StateWaitingAnswer || session.State == StateFinished {
		h.send(chatID, "У вас уже идет интервью. Используйте /status, /end или /stop.")
		return
	}

	format := h.defaultFormat
	if len(args) > 0 {
		format = args[0]
	}
	if format == "" {
		h.send(chatID, "Укажите формат: /start <формат>. Список: /formats")
		return
	}

	candidate := storage.Candidate{Name: strings.TrimSpace(from.FirstName + " " + from.LastName)}
	if len(args) > 1 {
		candidate.Role = args[1]
	}
	if len(args) > 2 {
		for _, c := range strings.Split(strings.Join(args[2:], " "), ",") {
			if c = strings.TrimSpace(c); c != "" {
				candidate.Companies = append(candidate.Companies, c)
			}
		}
	}

	turn, err := h.engine.Start(ctx, format, interview.WithCandidate(candidate))
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	session.Config = turn.Config
	session.State = StateWaitingAnswer
	h.send(chatID, fmt.Sprintf("🆔 ID интервью: %s\n\n%s", turn.Config.SessionID, questionText(turn)))
}

func (h *Handler) handleHelpCommand(chatID int64) {
	h.send(chatID, `🤖 Бот технических интервью

Команды:
/start <формат> [роль] [компании] - начать интервью
/formats - доступные форматы
/status - прогресс текущего интервью
/end - завершить интервью и получить оценку
/stop - прервать интервью без оценки
/help - показать это сообщение

Отвечайте на каждый вопрос одним сообщением. Ответ после истечения времени не засчитывается.`)
}

func (h *Handler) handleFormatsCommand(chatID int64) {
	var b strings.Builder
	b.WriteString("📋 Форматы интервью:\n")
	for _, f := range h.engine.Formats() {
		fmt.Fprintf(&b, "• %s: %d вопр., %s на ответ, тип %s\n", f.Name, f.QuestionCount, f.TimePerQuestion, f.QuestionType)
	}
	h.send(chatID, b.String())
}

func (h *Handler) handleStatusCommand(ctx context.Context, chatID int64, session *UserSession) {
	if session.State == StateIdle || session.State == StateCompleted {
		h.send(chatID, "Интервью не идет. Используйте /start для начала.")
		return
	}

	view, err := h.engine.Status(ctx, session.Config)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	progress := fmt.Sprintf("📊 Прогресс интервью\n\n🆔 ID: %s\n📋 Формат: %s\n❓ Ответов: %d\n⏰ Статус: %s",
		view.ID, view.FormatName, len(view.Answers), view.Status)
	if view.Deadline != nil && view.Status == storage.StatusActive {
		progress += fmt.Sprintf("\n⌛ Ответить до: %s", view.Deadline.Local().Format("15:04:05"))
	}
	h.send(chatID, progress)
}

func (h *Handler) handleEndCommand(ctx context.Context, chatID int64, session *UserSession) {
	if session.State == StateIdle || session.State == StateCompleted {
		h.send(chatID, "Интервью не идет. Используйте /start для начала.")
		return
	}

	h.send(chatID, "🧠 Готовлю оценку ответов...")
	res, err := h.engine.End(ctx, session.Config, h.endOps)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	session.State = StateCompleted
	h.send(chatID, FormatEvaluation(res.Evaluation))
	for opType, r := range res.Operations {
		if r.Failed() {
			h.logger.Warn("операция завершилась ошибкой", "type", opType, "error", r.Error)
		}
	}
}

func (h *Handler) handleStopCommand(ctx context.Context, chatID int64, session *UserSession) {
	if session.State == StateIdle || session.State == StateCompleted {
		h.send(chatID, "Интервью не идет.")
		return
	}

	if _, err := h.engine.Abort(ctx, session.Config); err != nil {
		h.replyError(chatID, err)
		return
	}
	h.resetSession(session)
	h.send(chatID, "⏹ Интервью прервано. Используйте /start для нового.")
}

func (h *Handler) validateUserInput(text string) error {
	if len(text) > 4000 {
		return fmt.Errorf("сообщение слишком длинное (максимум 4000 символов)")
	}
	if text == "" {
		return fmt.Errorf("пустой ответ")
	}
	return nil
}

func (h *Handler) handleUserInput(ctx context.Context, chatID int64, text string, session *UserSession) {
	switch session.State {
	case StateFinished:
		h.send(chatID, interview.FinishedNotice+" Команда: /end")
		return
	case StateWaitingAnswer:
	default:
		h.send(chatID, "Сейчас не время для ответов. Используйте /start для начала интервью или /help для помощи.")
		return
	}

	if err := h.validateUserInput(text); err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}

	turn, err := h.engine.Next(ctx, session.Config, text)
	if errors.Is(err, interview.ErrInterviewAlreadyFinished) {
		session.State = StateFinished
	}
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	if turn.Finished() {
		session.State = StateFinished
		h.send(chatID, turn.Message+"\nКоманда: /end")
		return
	}
	h.send(chatID, questionText(turn))
}

// getOrCreateSession отмечает активность под sessionsMutex, остальные поля под session.mu
func (h *Handler) getOrCreateSession(userID int64) *UserSession {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()

	if s, ok := h.sessions[userID]; ok {
		s.LastActivity = time.Now()
		return s
	}
	s := &UserSession{UserID: userID, State: StateIdle, LastActivity: time.Now()}
	h.sessions[userID] = s
	return s
}

func (h *Handler) resetSession(session *UserSession) {
	session.Config = interview.Config{}
	session.State = StateIdle
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.sender.SendMessage(chatID, text); err != nil {
		h.logger.Warn("ошибка отправки сообщения", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) replyError(chatID int64, err error) {
	var msg string
	switch {
	case errors.Is(err, interview.ErrUnknownFormat):
		msg = "Неизвестный формат. Список: /formats"
	case errors.Is(err, interview.ErrInvalidFormat):
		msg = "Формат настроен некорректно, выберите другой."
	case errors.Is(err, interview.ErrInterviewAlreadyFinished):
		msg = interview.FinishedNotice + " Команда: /end"
	case errors.Is(err, interview.ErrSessionAlreadyFinished), errors.Is(err, interview.ErrSessionNotFound):
		msg = "Интервью уже завершено. Используйте /start для нового."
	case errors.Is(err, interview.ErrGenerator):
		msg = "Не удалось получить ответ модели, повторите попытку."
	default:
		msg = "Внутренняя ошибка, повторите позже."
	}
	h.logger.Warn("ошибка обработки сообщения", "chat_id", chatID, "error", err)
	h.send(chatID, "❌ "+msg)
}

func questionText(turn interview.Turn) string {
	text := fmt.Sprintf("❓ Вопрос %d\n\n%s", turn.QuestionIndex+1, turn.Message)
	if turn.Deadline != nil {
		text += fmt.Sprintf("\n\n⌛ Ответить до %s", turn.Deadline.Local().Format("15:04:05"))
	}
	return text
}

// FormatEvaluation превращает оценку в текст сообщения
func FormatEvaluation(eval *storage.Evaluation) string {
	if eval == nil {
		return "Оценка недоступна."
	}

	var b strings.Builder
	b.WriteString("🎯 Оценка интервью\n\n")
	if eval.Verdict != "" {
		fmt.Fprintf(&b, "Вердикт: %s\n\n", eval.Verdict)
	}
	b.WriteString(eval.Summary)
	b.WriteString("\n")

	for i, r := range eval.Reviews {
		fmt.Fprintf(&b, "\n%d. %s [%s]\n%s\n", i+1, r.Question, r.Rating, r.Feedback)
	}
	if m := eval.Metrics; m != nil {
		fmt.Fprintf(&b, "\nУверенность: %s\nПаттерны ответов: %s\nЯсность и полнота: %s\n",
			m.Confidence, m.AnsweringPatterns, m.ClarityAndCompletenessWithinTime)
	}
	return strings.TrimSpace(b.String())
}
