package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/interview"
	"interview-engine/internal/storage"
)

const testRules = `
formats:
  short:
    question_count: 2
    time_per_question: 1h
    question_type: behavioral
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testOptions(t *testing.T) *globalOptions {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	dir := t.TempDir()
	settings := `llm_provider = "scripted"
storage_mode = "sqlite"
database_uri = "` + filepath.Join(dir, "sessions.db") + `"
results_dir = "` + filepath.Join(dir, "results") + `"
reports_dir = "` + filepath.Join(dir, "reports") + `"
`
	return &globalOptions{
		settingsPath: writeFile(t, dir, "settings.toml", settings),
		rulesPath:    writeFile(t, dir, "rules.yaml", testRules),
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("нечто"))
}

func TestBuildAppWiresScriptedEngine(t *testing.T) {
	a, err := buildApp(context.Background(), testOptions(t), io.Discard, true)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.bot)
	require.Len(t, a.engine.Formats(), 1)
	assert.Equal(t, "short", a.engine.Formats()[0].Name)
}

func TestBuildAppRejectsMissingRules(t *testing.T) {
	opts := testOptions(t)
	opts.rulesPath = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := buildApp(context.Background(), opts, io.Discard, true)
	assert.Error(t, err)
}

func TestRunInterviewInTerminal(t *testing.T) {
	a, err := buildApp(context.Background(), testOptions(t), io.Discard, true)
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	in := strings.NewReader("развернутый ответ про проект и команду\nкоротко\n")
	require.NoError(t, runInterview(context.Background(), a.engine, "short", storageCandidate("backend"), in, newConsole(&out)))

	text := out.String()
	assert.Contains(t, text, "Вопрос 1")
	assert.Contains(t, text, "Вопрос 2")
	assert.Contains(t, text, "Оценка интервью")
	assert.Contains(t, text, "Отвечено 2 из 2 вопросов.")
}

func TestRunInterviewAbort(t *testing.T) {
	a, err := buildApp(context.Background(), testOptions(t), io.Discard, true)
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	require.NoError(t, runInterview(context.Background(), a.engine, "short", storageCandidate(""), strings.NewReader("/abort\n"), newConsole(&out)))
	assert.Contains(t, out.String(), "Интервью прервано.")
}

func TestCLIStartAndStatusShareStore(t *testing.T) {
	opts := testOptions(t)

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"start", "short", "--role", "sre",
		"--settings", opts.settingsPath, "--rules", opts.rulesPath, "--env", ""})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"session_id"`)
	assert.Contains(t, out.String(), "sre")

	id := extractSessionID(t, out.String())

	status := rootCmd()
	var statusOut bytes.Buffer
	status.SetOut(&statusOut)
	status.SetErr(io.Discard)
	status.SetArgs([]string{"status", id,
		"--settings", opts.settingsPath, "--rules", opts.rulesPath, "--env", ""})
	require.NoError(t, status.Execute())
	assert.Contains(t, statusOut.String(), `"status": "active"`)
}

func TestReadOperations(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ops.json", `[{"type": "archive"}, {"type": "email", "to": "hr@example.com"}]`)
	ops, err := readOperations(path)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "email", ops[1].Type())

	ops, err = readOperations("")
	require.NoError(t, err)
	assert.Nil(t, ops)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"acme", "globex"}, splitList(" acme, ,globex "))
	assert.Nil(t, splitList(""))
}

func storageCandidate(role string) storage.Candidate {
	return storage.Candidate{Name: "Анна", Role: role}
}

func extractSessionID(t *testing.T, out string) string {
	t.Helper()
	var turn interview.Turn
	require.NoError(t, json.Unmarshal([]byte(out), &turn))
	require.NotEmpty(t, turn.Config.SessionID)
	return turn.Config.SessionID
}

func TestRunWithBackgroundStopsTasksOnError(t *testing.T) {
	bindErr := errors.New("address already in use")
	stopped := make(chan struct{}, 2)
	waitForCancel := func(ctx context.Context) {
		<-ctx.Done()
		stopped <- struct{}{}
	}

	done := make(chan error, 1)
	go func() {
		done <- runWithBackground(context.Background(), func(context.Context) error {
			return bindErr
		}, waitForCancel, waitForCancel)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, bindErr)
	case <-time.After(5 * time.Second):
		t.Fatal("runWithBackground не вернулся после ошибки")
	}
	assert.Len(t, stopped, 2)
}

func TestResultsCommandReadsArchive(t *testing.T) {
	opts := testOptions(t)
	run := func(args ...string) string {
		t.Helper()
		root := rootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(io.Discard)
		root.SetArgs(append(args, "--settings", opts.settingsPath, "--rules", opts.rulesPath, "--env", ""))
		require.NoError(t, root.Execute())
		return out.String()
	}

	assert.Contains(t, run("results"), "архив пуст")

	id := extractSessionID(t, run("start", "short"))
	opsPath := writeFile(t, t.TempDir(), "ops.json", `[{"type": "archive"}, {"type": "report"}]`)
	ended := run("end", id, "--ops", opsPath)
	assert.Contains(t, ended, "результат сохранен")
	assert.Contains(t, ended, "CSV отчет создан")

	assert.Contains(t, run("results"), id)

	var result storage.InterviewResult
	require.NoError(t, json.Unmarshal([]byte(run("results", id)), &result))
	assert.Equal(t, id, result.InterviewID)
	require.NotNil(t, result.Evaluation)
}
