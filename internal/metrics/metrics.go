// Package metrics публикует счетчики интервью в формате Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interview_engine"

// Metrics набор коллекторов движка. Методы безопасны для nil получателя.
type Metrics struct {
	registry *prometheus.Registry

	interviewsStarted   *prometheus.CounterVec
	interviewsCompleted *prometheus.CounterVec
	interviewsAborted   *prometheus.CounterVec
	questionsAsked      *prometheus.CounterVec
	answersTimedOut     *prometheus.CounterVec
	generatorCalls      *prometheus.CounterVec
	generatorDuration   *prometheus.HistogramVec
	toolCalls           *prometheus.CounterVec
	toolDuration        *prometheus.HistogramVec
	operations          *prometheus.CounterVec
}

// NewMetrics регистрирует коллекторы в собственном реестре
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		interviewsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_started_total",
			Help:      "Number of started interview sessions.",
		}, []string{"format"}),
		interviewsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_completed_total",
			Help:      "Number of interview sessions completed with an evaluation.",
		}, []string{"format"}),
		interviewsAborted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_aborted_total",
			Help:      "Number of aborted interview sessions.",
		}, []string{"format"}),
		questionsAsked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_asked_total",
			Help:      "Number of questions presented to candidates.",
		}, []string{"format"}),
		answersTimedOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_timed_out_total",
			Help:      "Number of answer slots recorded as timed out.",
		}, []string{"format"}),
		generatorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_calls_total",
			Help:      "Question and evaluation generator calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		generatorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generator_call_duration_seconds",
			Help:      "Latency of generator calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by name and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Latency of tool invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Post-interview operations by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}

func (m *Metrics) IncrementInterviewsStarted(format string) {
	if m == nil {
		return
	}
	m.interviewsStarted.WithLabelValues(format).Inc()
}

func (m *Metrics) IncrementInterviewsCompleted(format string) {
	if m == nil {
		return
	}
	m.interviewsCompleted.WithLabelValues(format).Inc()
}

func (m *Metrics) IncrementInterviewsAborted(format string) {
	if m == nil {
		return
	}
	m.interviewsAborted.WithLabelValues(format).Inc()
}

func (m *Metrics) IncrementQuestionsAsked(format string) {
	if m == nil {
		return
	}
	m.questionsAsked.WithLabelValues(format).Inc()
}

func (m *Metrics) IncrementAnswersTimedOut(format string) {
	if m == nil {
		return
	}
	m.answersTimedOut.WithLabelValues(format).Inc()
}

// ObserveGenerator учитывает вызов генератора: kind равен question или evaluation
func (m *Metrics) ObserveGenerator(kind string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generatorCalls.WithLabelValues(kind, outcome(failed)).Inc()
	m.generatorDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTool(name string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(name, outcome(failed)).Inc()
	m.toolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOperation(opType string, failed bool) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(opType, outcome(failed)).Inc()
}

// Handler отдает метрики для /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry нужен тестам и встраивающим приложениям
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
