package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor строит JSON Schema аргументов инструмента по структуре T
func SchemaFor[T any]() map[string]any {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var zero T
	schema := reflector.Reflect(zero)

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %T: %v", zero, err))
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("tools: schema for %T: %v", zero, err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// decodeArgs раскладывает аргументы вызова в структуру
func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("ошибка сериализации аргументов: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("некорректные аргументы: %w", err)
	}
	return nil
}
