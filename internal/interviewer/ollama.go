package interviewer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"interview-engine/internal/tools"
)

const defaultOllamaModel = "llama3.1"

// OllamaCompleter вызывает локальную модель через Ollama
type OllamaCompleter struct {
	client *api.Client
	model  string
}

func NewOllamaCompleter(host, model string, httpClient *http.Client) (*OllamaCompleter, error) {
	if model == "" {
		model = defaultOllamaModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("некорректный OLLAMA_HOST %q: %w", host, err)
	}
	return &OllamaCompleter{
		client: api.NewClient(base, httpClient),
		model:  model,
	}, nil
}

func (c *OllamaCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	stream := false
	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = ollamaTools(req.Tools)
	}

	var resp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("ошибка вызова Ollama: %w", err)
	}

	out := Response{Text: resp.Message.Content}
	for i, call := range resp.Message.ToolCalls {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.ToolCalls = append(out.ToolCalls, toolCall(id, call.Function.Name, map[string]any(call.Function.Arguments)))
	}
	return out, nil
}

func ollamaTools(defs []tools.Tool) api.Tools {
	out := make(api.Tools, 0, len(defs))
	for _, t := range defs {
		props, required := schemaProperties(t)
		properties := make(map[string]api.ToolProperty, len(props))
		for _, name := range sortedKeys(props) {
			prop, _ := props[name].(map[string]any)
			p := api.ToolProperty{Type: api.PropertyType{propertyType(prop)}}
			if d, ok := prop["description"].(string); ok {
				p.Description = d
			}
			properties[name] = p
		}

		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       "object",
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return out
}
