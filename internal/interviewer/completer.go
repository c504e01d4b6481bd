// Package interviewer генерирует вопросы и итоговую оценку с помощью языковой модели.
package interviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"interview-engine/internal/tools"
)

// Request один запрос к модели
type Request struct {
	System      string
	Prompt      string
	Tools       []tools.Tool
	MaxTokens   int
	Temperature float64
}

// Response ответ модели: текст и запрошенные вызовы инструментов
type Response struct {
	Text      string
	ToolCalls []tools.Call
}

// Completer обертка над API конкретного провайдера
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// schemaProperties возвращает properties и required из JSON Schema инструмента
func schemaProperties(t tools.Tool) (map[string]any, []string) {
	props, _ := t.Parameters["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	return props, requiredFields(t.Parameters["required"])
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, item := range req {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// propertyType первый тип свойства схемы, по умолчанию string
func propertyType(prop map[string]any) string {
	switch t := prop["type"].(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "null" {
				return s
			}
		}
	}
	return "string"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("ошибка разбора аргументов инструмента: %w", err)
	}
	return args, nil
}

// withSystem склеивает системный промпт и запрос для API без отдельного поля инструкций
func withSystem(req Request) string {
	if req.System == "" {
		return req.Prompt
	}
	return req.System + "\n\n" + req.Prompt
}

func toolCall(id, name string, args map[string]any) tools.Call {
	if id == "" {
		id = name
	}
	return tools.Call{ID: id, Name: name, Arguments: args}
}
