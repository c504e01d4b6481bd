// Package operations выполняет действия после интервью: письма, вызовы API,
// сообщения в мессенджер и архивирование результата.
package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	ErrUnknownOperation = errors.New("неизвестный тип операции")
	ErrMissingType      = errors.New("не указан тип операции")
	ErrMissingParam     = errors.New("не задан обязательный параметр")
	ErrInvalidParam     = errors.New("некорректный параметр")
)

// Spec описание одной операции: поле type и произвольные параметры
type Spec map[string]any

// Type возвращает тип операции
func (s Spec) Type() string {
	t, _ := s["type"].(string)
	return t
}

// String возвращает строковый параметр или пустую строку
func (s Spec) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Result итог операции: заполнено либо Text, либо Error
type Result struct {
	Text  string `json:"result,omitempty"`
	Error string `json:"error,omitempty"`
}

func (r Result) Failed() bool {
	return r.Error != ""
}

// Handler выполняет операцию одного типа
type Handler func(ctx context.Context, spec Spec, report *Report) (string, error)

// Observer получает итог каждой операции для метрик
type Observer interface {
	ObserveOperation(opType string, failed bool)
}

// Dispatcher выполняет список операций независимо друг от друга
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	observer Observer
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register связывает тип операции с обработчиком
func (d *Dispatcher) Register(opType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[opType] = h
}

func (d *Dispatcher) SetObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = o
}

// Types возвращает зарегистрированные типы операций
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Run выполняет операции параллельно. Сбой одной операции не мешает остальным.
// Результаты собираются по типу в порядке списка, повтор типа перезаписывает предыдущий.
func (d *Dispatcher) Run(ctx context.Context, report *Report, specs []Spec) map[string]Result {
	results := make([]Result, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec Spec) {
			defer wg.Done()
			results[i] = d.runOne(ctx, report, spec)
		}(i, spec)
	}
	wg.Wait()

	merged := make(map[string]Result, len(specs))
	for i, spec := range specs {
		merged[spec.Type()] = results[i]
	}
	return merged
}

func (d *Dispatcher) runOne(ctx context.Context, report *Report, spec Spec) (res Result) {
	opType := spec.Type()

	d.mu.RLock()
	h, ok := d.handlers[opType]
	observer := d.observer
	d.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			res = Result{Error: fmt.Sprintf("паника операции %q: %v", opType, p)}
		}
		if res.Failed() {
			d.logger.Warn("operation failed", "type", opType, "session_id", report.SessionID, "error", res.Error)
		}
		if observer != nil {
			observer.ObserveOperation(opType, res.Failed())
		}
	}()

	switch {
	case opType == "":
		return Result{Error: ErrMissingType.Error()}
	case !ok:
		return Result{Error: fmt.Sprintf("%s: %q", ErrUnknownOperation, opType)}
	}

	text, err := h(ctx, spec, report)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Text: text}
}
