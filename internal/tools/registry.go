// Package tools вызывает именованные инструменты, которые генератор
// вопросов запрашивает по ходу интервью.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrUnknownTool   = errors.New("инструмент не зарегистрирован")
	ErrNilHandler    = errors.New("обработчик инструмента не задан")
	ErrToolNameEmpty = errors.New("пустое имя инструмента")
)

// Handler выполняет один вызов инструмента с разобранными аргументами
type Handler func(ctx context.Context, arguments map[string]any) (string, error)

// Tool описание инструмента и его обработчик.
// Parameters содержит JSON Schema объекта аргументов.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Call запрос генератора на вызов инструмента
type Call struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Result итог вызова: заполнено либо Text, либо Error
type Result struct {
	CallID string `json:"id,omitempty"`
	Name   string `json:"tool_name"`
	Text   string `json:"result_text,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed сообщает, завершился ли вызов ошибкой
func (r Result) Failed() bool {
	return r.Error != ""
}

// Observer получает итог каждого вызова для метрик
type Observer interface {
	ObserveTool(name string, failed bool, elapsed time.Duration)
}

// Registry хранит инструменты по имени
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	observer Observer
}

func New(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetObserver подключает сборщик метрик
func (r *Registry) SetObserver(o Observer) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

// Register добавляет инструмент, заменяя одноименный
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, t.Name)
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	r.mu.Lock()
	r.tools[t.Name] = t
	r.mu.Unlock()
	return nil
}

// Specs возвращает зарегистрированные инструменты в порядке имен
func (r *Registry) Specs() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke выполняет вызов. Для незарегистрированного имени возвращает ErrUnknownTool,
// любой сбой обработчика, включая панику, попадает в Result.Error.
func (r *Registry) Invoke(ctx context.Context, call Call) (Result, error) {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name))

	r.mu.RLock()
	t, ok := r.tools[call.Name]
	observer := r.observer
	r.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	started := time.Now()
	text, err := safeCall(ctx, t.Handler, call.Arguments)
	elapsed := time.Since(started)

	result := Result{CallID: call.ID, Name: call.Name}
	if err != nil {
		err = fmt.Errorf("ошибка выполнения инструмента %q: %w", call.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "tool failed", "tool", call.Name, "error", err)
		result.Error = err.Error()
	} else {
		result.Text = text
	}

	if observer != nil {
		observer.ObserveTool(call.Name, result.Failed(), elapsed)
	}
	return result, nil
}

func safeCall(ctx context.Context, h Handler, args map[string]any) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("паника обработчика: %v", p)
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	return h(ctx, args)
}
