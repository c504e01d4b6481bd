package operations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"interview-engine/internal/config"
	"interview-engine/internal/storage"
)

// EmailOperation отправляет оценку письмом через SMTP.
// Параметры: to (строка или список), subject (необязательно).
type EmailOperation struct {
	SMTP config.SMTPConfig
	// SendMail подменяется в тестах
	SendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (e *EmailOperation) Handle(_ context.Context, spec Spec, report *Report) (string, error) {
	recipients := stringList(spec["to"])
	if len(recipients) == 0 {
		return "", fmt.Errorf("%w: to", ErrMissingParam)
	}
	if e.SMTP.Host == "" {
		return "", fmt.Errorf("SMTP_HOST не установлен")
	}

	subject := spec.String("subject")
	if subject == "" {
		subject = fmt.Sprintf("Результаты интервью %s", report.SessionID)
	}

	from := e.SMTP.From
	if from == "" {
		from = e.SMTP.Username
	}
	for _, v := range append([]string{subject, from}, recipients...) {
		if strings.ContainsAny(v, "\r\n") {
			return "", fmt.Errorf("%w: перевод строки в заголовке письма %q", ErrInvalidParam, v)
		}
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(report.Text(), "\n", "\r\n"))

	var auth smtp.Auth
	if e.SMTP.Username != "" {
		auth = smtp.PlainAuth("", e.SMTP.Username, e.SMTP.Password, e.SMTP.Host)
	}

	send := e.SendMail
	if send == nil {
		send = smtp.SendMail
	}
	addr := fmt.Sprintf("%s:%d", e.SMTP.Host, e.SMTP.Port)
	if err := send(addr, auth, from, recipients, msg.Bytes()); err != nil {
		return "", fmt.Errorf("ошибка отправки письма: %w", err)
	}

	return fmt.Sprintf("письмо отправлено: %s", strings.Join(recipients, ", ")), nil
}

// APIOperation вызывает внешний HTTP API.
// Параметры: url (или endpoint), method (по умолчанию POST), headers, body.
// Строковые значения body и headers - шаблоны text/template над Report.
// Без body отправляется архивная выгрузка интервью.
type APIOperation struct {
	Client *http.Client
}

func NewAPIOperation() *APIOperation {
	return &APIOperation{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (a *APIOperation) Handle(ctx context.Context, spec Spec, report *Report) (string, error) {
	endpoint := spec.String("url")
	if endpoint == "" {
		endpoint = spec.String("endpoint")
	}
	if endpoint == "" {
		return "", fmt.Errorf("%w: url", ErrMissingParam)
	}

	method := strings.ToUpper(spec.String("method"))
	if method == "" {
		method = http.MethodPost
	}

	var payload any = report.InterviewResult()
	if body, ok := spec["body"]; ok {
		rendered, err := renderValue(body, report)
		if err != nil {
			return "", err
		}
		payload = rendered
	}

	var reader io.Reader
	if method != http.MethodGet {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("ошибка сериализации тела запроса: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return "", fmt.Errorf("ошибка создания запроса: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := spec["headers"].(map[string]any); ok {
		for k, v := range headers {
			s, ok := v.(string)
			if !ok {
				continue
			}
			rendered, err := renderString(s, report)
			if err != nil {
				return "", err
			}
			req.Header.Set(k, rendered)
		}
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP ошибка %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil
}

// MessageSender отправляет текст в чат мессенджера
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// TelegramOperation отправляет оценку в чат. Параметр: chat_id.
type TelegramOperation struct {
	Sender MessageSender
}

func (t *TelegramOperation) Handle(_ context.Context, spec Spec, report *Report) (string, error) {
	chatID, err := int64Param(spec["chat_id"])
	if err != nil {
		return "", err
	}
	if t.Sender == nil {
		return "", fmt.Errorf("TELEGRAM_BOT_TOKEN не установлен")
	}

	if err := t.Sender.SendMessage(chatID, report.Text()); err != nil {
		return "", fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return fmt.Sprintf("сообщение отправлено в чат %d", chatID), nil
}

// ArchiveOperation сохраняет результат интервью в JSON файл. Параметр dir необязателен.
type ArchiveOperation struct {
	Archive *storage.Archive
}

func (a *ArchiveOperation) Handle(_ context.Context, spec Spec, report *Report) (string, error) {
	archive := a.Archive
	if dir := spec.String("dir"); dir != "" {
		archive = storage.NewArchive(dir)
	}
	if archive == nil {
		archive = storage.NewArchive("")
	}

	path, err := archive.SaveResult(report.InterviewResult())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("результат сохранен: %s", path), nil
}

func renderValue(v any, report *Report) (any, error) {
	switch val := v.(type) {
	case string:
		return renderString(val, report)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := renderValue(item, report)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := renderValue(item, report)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func renderString(s string, report *Report) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("op").Option("missingkey=zero").Parse(s)
	if err != nil {
		return "", fmt.Errorf("некорректный шаблон %q: %w", s, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, report); err != nil {
		return "", fmt.Errorf("ошибка шаблона %q: %w", s, err)
	}
	return b.String(), nil
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return val
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func int64Param(v any) (int64, error) {
	switch val := v.(type) {
	case float64:
		return int64(val), nil
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case json.Number:
		return val.Int64()
	case string:
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("некорректный chat_id %q: %w", val, err)
		}
		return id, nil
	case nil:
		return 0, fmt.Errorf("%w: chat_id", ErrMissingParam)
	}
	return 0, fmt.Errorf("некорректный chat_id %v", v)
}

// NewDefaultDispatcher регистрирует встроенные операции email, api, telegram, archive и report
func NewDefaultDispatcher(logger *slog.Logger, smtpCfg config.SMTPConfig, archive *storage.Archive, reportsDir string, sender MessageSender) *Dispatcher {
	d := NewDispatcher(logger)
	d.Register("email", (&EmailOperation{SMTP: smtpCfg}).Handle)
	d.Register("api", NewAPIOperation().Handle)
	d.Register("telegram", (&TelegramOperation{Sender: sender}).Handle)
	d.Register("archive", (&ArchiveOperation{Archive: archive}).Handle)
	d.Register("report", (&CSVReportOperation{Dir: reportsDir}).Handle)
	return d
}
