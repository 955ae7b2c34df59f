package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	invocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_invocations_total",
		Help: "Invocations by outcome",
	}, []string{"outcome"})
	invocationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisor_invocation_duration_seconds",
		Help:    "End-to-end invocation latency",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	})
	toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_tool_calls_total",
		Help: "Tool invocations requested by the model",
	}, []string{"tool", "status"})
	modelTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_model_tokens_total",
		Help: "Model token usage",
	}, []string{"direction"})
	historyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "advisor_history_errors_total",
		Help: "Failed invocation history writes",
	})
)

func init() {
	prometheus.MustRegister(invocations, invocationSeconds, toolCalls, modelTokens, historyErrors)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func ObserveInvocation(outcome string, d time.Duration) {
	invocations.WithLabelValues(outcome).Inc()
	invocationSeconds.Observe(d.Seconds())
}

func IncToolCall(tool, status string) { toolCalls.WithLabelValues(tool, status).Inc() }

func AddTokens(in, out int32) {
	modelTokens.WithLabelValues("input").Add(float64(in))
	modelTokens.WithLabelValues("output").Add(float64(out))
}

func IncHistoryError() { historyErrors.Inc() }
