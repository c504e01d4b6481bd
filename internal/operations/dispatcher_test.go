package operations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/config"
	"interview-engine/internal/storage"
)

func testReport() *Report {
	return &Report{
		SessionID:  "sess-1",
		FormatName: "short",
		Candidate:  &storage.Candidate{Name: "Анна", Role: "backend"},
		Answers: []storage.Answer{
			{Question: "Что такое горутина?", Answer: "легкий поток"},
			{Question: "Что такое канал?", Answer: "", TimedOut: true},
		},
		Evaluation:  &storage.Evaluation{Summary: "Уверенные базовые знания", Verdict: "Capable"},
		CompletedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

type countingObserver struct {
	mu     sync.Mutex
	failed map[string]int
	ok     map[string]int
}

func (o *countingObserver) ObserveOperation(opType string, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if failed {
		o.failed[opType]++
	} else {
		o.ok[opType]++
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	d := NewDispatcher(nil)
	obs := &countingObserver{failed: map[string]int{}, ok: map[string]int{}}
	d.SetObserver(obs)
	d.Register("ok", func(context.Context, Spec, *Report) (string, error) { return "done", nil })
	d.Register("bad", func(context.Context, Spec, *Report) (string, error) { return "", errors.New("broken") })
	d.Register("panic", func(context.Context, Spec, *Report) (string, error) { panic("boom") })

	results := d.Run(context.Background(), testReport(), []Spec{
		{"type": "bad"},
		{"type": "ok"},
		{"type": "panic"},
		{"type": "sms"},
	})

	require.Len(t, results, 4)
	assert.Equal(t, Result{Text: "done"}, results["ok"])
	assert.Equal(t, "broken", results["bad"].Error)
	assert.Contains(t, results["panic"].Error, "boom")
	assert.Contains(t, results["sms"].Error, ErrUnknownOperation.Error())
	assert.Equal(t, 1, obs.ok["ok"])
	assert.Equal(t, 3, obs.failed["bad"]+obs.failed["panic"]+obs.failed["sms"])
}

func TestRunDuplicateTypeLastWins(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("echo", func(_ context.Context, s Spec, _ *Report) (string, error) {
		return s.String("text"), nil
	})

	results := d.Run(context.Background(), testReport(), []Spec{
		{"type": "echo", "text": "first"},
		{"type": "echo", "text": "second"},
	})
	assert.Equal(t, map[string]Result{"echo": {Text: "second"}}, results)
}

func TestRunMissingType(t *testing.T) {
	results := NewDispatcher(nil).Run(context.Background(), testReport(), []Spec{{"to": "x"}})
	assert.Equal(t, ErrMissingType.Error(), results[""].Error)
}

func TestEmailOperation(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg string
	op := &EmailOperation{
		SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "bot@example.com"},
		SendMail: func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg = addr, to, string(msg)
			return nil
		},
	}

	out, err := op.Handle(context.Background(), Spec{"type": "email", "to": "hr@co, lead@co"}, testReport())
	require.NoError(t, err)
	assert.Contains(t, out, "hr@co")
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"hr@co", "lead@co"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Результаты интервью sess-1")
	assert.Contains(t, gotMsg, "Уверенные базовые знания")

	_, err = op.Handle(context.Background(), Spec{"type": "email"}, testReport())
	assert.ErrorIs(t, err, ErrMissingParam)

	noHost := &EmailOperation{}
	_, err = noHost.Handle(context.Background(), Spec{"to": "hr@co"}, testReport())
	assert.Error(t, err)
}

func TestEmailOperationRejectsHeaderInjection(t *testing.T) {
	sent := false
	op := &EmailOperation{
		SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "bot@example.com"},
		SendMail: func(string, smtp.Auth, string, []string, []byte) error {
			sent = true
			return nil
		},
	}

	_, err := op.Handle(context.Background(), Spec{"to": "hr@co", "subject": "Итоги\r\nBcc: evil@x"}, testReport())
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = op.Handle(context.Background(), Spec{"to": []any{"hr@co\nBcc: evil@x"}}, testReport())
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.False(t, sent)
}

func TestAPIOperationRendersBodyAndHeaders(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer srv.Close()

	op := NewAPIOperation()
	out, err := op.Handle(context.Background(), Spec{
		"type":    "api",
		"url":     srv.URL,
		"method":  "put",
		"headers": map[string]any{"Authorization": "Bearer {{.SessionID}}"},
		"body": map[string]any{
			"candidate": "{{.Candidate.Name}}",
			"verdict":   "{{.Evaluation.Verdict}}",
			"static":    7.0,
		},
	}, testReport())
	require.NoError(t, err)

	assert.Equal(t, `HTTP 201: {"id":42}`, out)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "Bearer sess-1", gotAuth)
	assert.Equal(t, "Анна", gotBody["candidate"])
	assert.Equal(t, "Capable", gotBody["verdict"])
	assert.Equal(t, 7.0, gotBody["static"])
}

func TestAPIOperationDefaultsToInterviewResult(t *testing.T) {
	var got storage.InterviewResult
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	_, err := NewAPIOperation().Handle(context.Background(), Spec{"endpoint": srv.URL}, testReport())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.InterviewID)
	require.Len(t, got.Answers, 2)
	assert.True(t, got.Answers[1].TimedOut)
}

func TestAPIOperationReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPIOperation().Handle(context.Background(), Spec{"url": srv.URL}, testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type fakeSender struct {
	chatID int64
	text   string
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.chatID, f.text = chatID, text
	return nil
}

func TestTelegramOperation(t *testing.T) {
	sender := &fakeSender{}
	op := &TelegramOperation{Sender: sender}

	_, err := op.Handle(context.Background(), Spec{"chat_id": 12345.0}, testReport())
	require.NoError(t, err)
	assert.Equal(t, int64(12345), sender.chatID)
	assert.Contains(t, sender.text, "Вердикт: Capable")

	_, err = op.Handle(context.Background(), Spec{}, testReport())
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestArchiveOperation(t *testing.T) {
	dir := t.TempDir()
	op := &ArchiveOperation{Archive: storage.NewArchive(dir)}

	out, err := op.Handle(context.Background(), Spec{"type": "archive"}, testReport())
	require.NoError(t, err)
	assert.Contains(t, out, "interview_sess-1.json")

	_, err = os.Stat(dir + "/interview_sess-1.json")
	assert.NoError(t, err)
}

func TestCSVReportOperation(t *testing.T) {
	dir := t.TempDir()
	report := testReport()
	report.Evaluation.Reviews = []storage.AnswerReview{
		{Question: "Что такое горутина?", Rating: "good", Feedback: "верно"},
		{Question: "Что такое канал?", Rating: "bad", Feedback: "нет ответа"},
	}
	op := &CSVReportOperation{Dir: dir}

	out, err := op.Handle(context.Background(), Spec{"type": "report"}, report)
	require.NoError(t, err)
	assert.Contains(t, out, "2 строк")

	data, err := os.ReadFile(dir + "/interview_sess-1_20260401T090000.csv")
	require.NoError(t, err)
	assert.Equal(t, "index,question,question_type,answer,timed_out,rating,feedback\n"+
		"1,Что такое горутина?,,легкий поток,false,good,верно\n"+
		"2,Что такое канал?,,,true,bad,нет ответа\n", string(data))
}

func TestCSVReportOperationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	report := testReport()
	report.Evaluation = nil

	_, err := (&CSVReportOperation{Dir: t.TempDir()}).Handle(context.Background(),
		Spec{"name": "../scores", "dir": dir}, report)
	require.NoError(t, err)

	_, err = os.Stat(dir + "/_scores_20260401T090000.csv")
	assert.NoError(t, err)
}

func TestDefaultDispatcherTypes(t *testing.T) {
	d := NewDefaultDispatcher(nil, config.SMTPConfig{}, storage.NewArchive(t.TempDir()), t.TempDir(), nil)
	assert.Equal(t, []string{"api", "archive", "email", "report", "telegram"}, d.Types())
}
