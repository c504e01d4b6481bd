package interviewer

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiCompleter вызывает Gemini API. Клиент создается при первом запросе.
type GeminiCompleter struct {
	apiKey string
	model  string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func NewGeminiCompleter(apiKey, model string) *GeminiCompleter {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiCompleter{apiKey: apiKey, model: model}
}

func (c *GeminiCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	c.once.Do(func() {
		c.client, c.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if c.clientErr != nil {
		return Response{}, fmt.Errorf("ошибка создания клиента Gemini: %w", c.clientErr)
	}

	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			props, required := schemaProperties(t)
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: geminiProperties(props),
					Required:   required,
				},
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("ошибка вызова Gemini: %w", err)
	}
	if result == nil {
		return Response{}, fmt.Errorf("пустой ответ от Gemini")
	}

	out := Response{Text: result.Text()}
	for _, call := range result.FunctionCalls() {
		out.ToolCalls = append(out.ToolCalls, toolCall(call.ID, call.Name, call.Args))
	}
	return out, nil
}

func geminiProperties(props map[string]any) map[string]*genai.Schema {
	out := make(map[string]*genai.Schema, len(props))
	for _, name := range sortedKeys(props) {
		prop, _ := props[name].(map[string]any)
		out[name] = geminiSchema(prop)
	}
	return out
}

func geminiSchema(prop map[string]any) *genai.Schema {
	schema := &genai.Schema{}
	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	switch propertyType(prop) {
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		items, _ := prop["items"].(map[string]any)
		schema.Items = geminiSchema(items)
	case "object":
		schema.Type = genai.TypeObject
		if nested, ok := prop["properties"].(map[string]any); ok {
			schema.Properties = geminiProperties(nested)
		}
	default:
		schema.Type = genai.TypeString
	}
	return schema
}
