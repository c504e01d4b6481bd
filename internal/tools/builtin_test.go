package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/config"
)

func TestSearchDuckDuckGo(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"AbstractText":"Go is a language","AbstractURL":"https://go.dev",
			"RelatedTopics":[{"Text":"Goroutines","FirstURL":"https://go.dev/tour"}]}`))
	}))
	defer srv.Close()

	st := NewSearchTool(config.SearchDuckDuckGo, config.SearchConfig{})
	st.BaseURL = srv.URL
	st.Client = srv.Client()

	out, err := st.handle(context.Background(), map[string]any{"query": "golang interview"})
	require.NoError(t, err)
	assert.Equal(t, "golang interview", gotQuery)
	assert.Contains(t, out, "Go is a language")
	assert.Contains(t, out, "Goroutines")
}

func TestSearchBingRequiresKeyAndSendsHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		_, _ = w.Write([]byte(`{"webPages":{"value":[{"name":"Top questions","url":"https://x","snippet":"list"}]}}`))
	}))
	defer srv.Close()

	st := NewSearchTool(config.SearchBing, config.SearchConfig{})
	st.BaseURL = srv.URL
	_, err := st.handle(context.Background(), map[string]any{"query": "q"})
	require.Error(t, err)

	st.APIKey = "secret"
	out, err := st.handle(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, out, "Top questions")
}

func TestSearchReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := NewSearchTool(config.SearchDuckDuckGo, config.SearchConfig{})
	st.BaseURL = srv.URL

	r, err := New(st.Tool())
	require.NoError(t, err)
	res, err := r.Invoke(context.Background(), Call{Name: "search_internet", Arguments: map[string]any{"query": "x"}})
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "503")
}
