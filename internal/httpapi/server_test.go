package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/interviewer"
	"interview-engine/internal/metrics"
	"interview-engine/internal/storage"
)

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	return newTestServerWithConfig(t, config.ServerConfig{APIToken: token})
}

func newTestServerWithConfig(t *testing.T, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	rules := config.NewRuleSet(
		config.Format{Name: "short", QuestionCount: 2, TimePerQuestion: time.Hour, QuestionType: config.QuestionMixed},
		config.Format{Name: "broken", QuestionCount: 0, TimePerQuestion: time.Minute, QuestionType: config.QuestionCoding},
	)
	m := metrics.NewMetrics()
	engine, err := interview.New(interview.Dependencies{
		Rules:     rules,
		Store:     storage.NewMemoryStore(),
		Generator: &interviewer.ScriptedGenerator{},
		Metrics:   m,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(engine, m, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "ожидалась ошибка: %v", body)
	return e["code"].(string)
}

func TestInterviewLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, "")

	resp, turn := doJSON(t, srv, http.MethodPost, "/v1/interviews", "", map[string]any{
		"format":    "short",
		"candidate": map[string]any{"name": "Анна", "role": "backend"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cfg := turn["interview_config"].(map[string]any)
	id := cfg["session_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "awaiting_answer", turn["phase"])
	assert.Contains(t, turn["message"], "backend")

	resp, turn = doJSON(t, srv, http.MethodPost, "/v1/interviews/"+id+"/next", "", map[string]any{"message": "первый ответ"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), turn["current_question_index"])

	resp, turn = doJSON(t, srv, http.MethodPost, "/v1/interviews/"+id+"/next", "", map[string]any{"message": "второй ответ"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "finished", turn["phase"])
	assert.Equal(t, interview.FinishedNotice, turn["message"])

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/interviews/"+id+"/next", "", map[string]any{"message": "лишний"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, codeFinished, errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/interviews/"+id+"/end", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	eval := body["evaluation"].(map[string]any)
	assert.Equal(t, "Отвечено 2 из 2 вопросов.", eval["summary"])

	resp, view := doJSON(t, srv, http.MethodGet, "/v1/interviews/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", view["status"])
	assert.Len(t, view["answers"], 2)

	resp, _ = doJSON(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, "")

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/interviews", "", map[string]any{"format": "missing"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, codeUnknownFormat, errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/interviews", "", map[string]any{"format": "broken"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, codeInvalidFormat, errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/interviews/nope/next", "", map[string]any{"message": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeNotFound, errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/interviews", "", map[string]any{"format": "short", "extra": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeInvalidRequest, errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/interviews", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeInvalidRequest, errorCode(t, body))
}

func TestAbortThenEnd(t *testing.T) {
	srv := newTestServer(t, "")
	_, turn := doJSON(t, srv, http.MethodPost, "/v1/interviews", "", map[string]any{"format": "short"})
	id := turn["interview_config"].(map[string]any)["session_id"].(string)

	resp, view := doJSON(t, srv, http.MethodPost, "/v1/interviews/"+id+"/abort", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "aborted", view["status"])

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/interviews/"+id+"/end", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, codeFinished, errorCode(t, body))
}

func TestBearerToken(t *testing.T) {
	srv := newTestServer(t, "secret")

	resp, body := doJSON(t, srv, http.MethodGet, "/v1/formats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, codeUnauthorized, errorCode(t, body))

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/formats", "secret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	formats := body["formats"].([]any)
	require.Len(t, formats, 2)
	assert.Equal(t, "broken", formats[0].(map[string]any)["name"])
	assert.Equal(t, "1h0m0s", formats[1].(map[string]any)["time_per_question"])

	resp, _ = doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketSession(t *testing.T) {
	srv := newTestServer(t, "")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/interviews/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"id": "1", "action": "start", "format": "short"}))
	var started struct {
		ID     string         `json:"id"`
		Result interview.Turn `json:"result"`
	}
	require.NoError(t, conn.ReadJSON(&started))
	assert.Equal(t, "1", started.ID)
	require.NotEmpty(t, started.Result.Config.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"id": "2", "action": "next", "interview_config": started.Result.Config, "message": "ответ",
	}))
	var next struct {
		Result interview.Turn `json:"result"`
	}
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, 1, next.Result.QuestionIndex)

	require.NoError(t, conn.WriteJSON(map[string]any{"id": "3", "action": "dance"}))
	var bad wsResponse
	require.NoError(t, conn.ReadJSON(&bad))
	require.NotNil(t, bad.Error)
	assert.Equal(t, codeInvalidRequest, bad.Error.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"id": "4", "action": "status", "interview_config": map[string]any{"session_id": "nope"}}))
	var missing wsResponse
	require.NoError(t, conn.ReadJSON(&missing))
	require.NotNil(t, missing.Error)
	assert.Equal(t, codeNotFound, missing.Error.Code)
}

func TestWebsocketOriginCheck(t *testing.T) {
	srv := newTestServerWithConfig(t, config.ServerConfig{AllowedOrigins: []string{"https://app.example.com"}})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/interviews/ws"

	dial := func(origin string) (*http.Response, error) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{origin}})
		if err == nil {
			conn.Close()
		}
		return resp, err
	}

	resp, err := dial("https://evil.example.org")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = dial(srv.URL)
	assert.NoError(t, err)

	_, err = dial("https://app.example.com")
	assert.NoError(t, err)
}
