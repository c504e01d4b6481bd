package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"interview-engine/internal/config"
)

const (
	duckDuckGoURL = "https://api.duckduckgo.com/"
	bingURL       = "https://api.bing.microsoft.com/v7.0/search"
	maxSearchHits = 5
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Поисковый запрос"`
}

// SearchTool ищет в интернете актуальные темы и вопросы для роли кандидата
type SearchTool struct {
	Provider string
	BaseURL  string
	APIKey   string
	Client   *http.Client
}

// NewSearchTool собирает поиск для провайдера из настроек
func NewSearchTool(provider string, cfg config.SearchConfig) *SearchTool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	st := &SearchTool{
		Provider: provider,
		APIKey:   cfg.BingAPIKey,
		Client: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "search " + r.URL.Host
				})),
		},
	}
	if provider == config.SearchBing {
		st.BaseURL = bingURL
	} else {
		st.BaseURL = duckDuckGoURL
	}
	return st
}

// Tool возвращает описание для реестра
func (s *SearchTool) Tool() Tool {
	return Tool{
		Name:        "search_internet",
		Description: "Поиск в интернете свежих тем, концепций и типичных вопросов собеседований для роли и компаний кандидата.",
		Parameters:  SchemaFor[searchArgs](),
		Handler:     s.handle,
	}
}

func (s *SearchTool) handle(ctx context.Context, arguments map[string]any) (string, error) {
	var args searchArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("пустой поисковый запрос")
	}

	if s.Provider == config.SearchBing {
		return s.searchBing(ctx, args.Query)
	}
	return s.searchDuckDuckGo(ctx, args.Query)
}

type duckDuckGoResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (s *SearchTool) searchDuckDuckGo(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	var resp duckDuckGoResponse
	if err := s.getJSON(ctx, s.BaseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	if resp.AbstractText != "" {
		fmt.Fprintf(&b, "%s (%s)\n", resp.AbstractText, resp.AbstractURL)
	}
	for i, topic := range resp.RelatedTopics {
		if i >= maxSearchHits {
			break
		}
		if topic.Text == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s)\n", topic.Text, topic.FirstURL)
	}
	if b.Len() == 0 {
		return "ничего не найдено", nil
	}
	return strings.TrimSpace(b.String()), nil
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

func (s *SearchTool) searchBing(ctx context.Context, query string) (string, error) {
	if s.APIKey == "" {
		return "", fmt.Errorf("BING_API_KEY не установлен")
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprint(maxSearchHits))

	var resp bingResponse
	headers := map[string]string{"Ocp-Apim-Subscription-Key": s.APIKey}
	if err := s.getJSON(ctx, s.BaseURL+"?"+q.Encode(), headers, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, page := range resp.WebPages.Value {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", page.Name, page.Snippet, page.URL)
	}
	if b.Len() == 0 {
		return "ничего не найдено", nil
	}
	return strings.TrimSpace(b.String()), nil
}

func (s *SearchTool) getJSON(ctx context.Context, target string, headers map[string]string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP ошибка %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("ошибка парсинга ответа: %w", err)
	}
	return nil
}
