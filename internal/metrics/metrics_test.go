package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrementInterviewsStarted("short")
	m.IncrementInterviewsStarted("short")
	m.IncrementQuestionsAsked("short")
	m.IncrementAnswersTimedOut("short")
	m.ObserveTool("search_internet", true, 10*time.Millisecond)
	m.ObserveGenerator("question", false, time.Second)
	m.ObserveOperation("email", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.interviewsStarted.WithLabelValues("short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answersTimedOut.WithLabelValues("short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("search_internet", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generatorCalls.WithLabelValues("question", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("email", "success")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementInterviewsStarted("x")
		m.ObserveTool("x", false, 0)
		m.ObserveOperation("x", true)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncrementInterviewsCompleted("short")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `interview_engine_interviews_completed_total{format="short"} 1`))
}

func TestInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
