package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		gptResponseLatency,
		aiCallsTotal,
		aiBreakerState,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	gptResponseLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gpt_response_latency_seconds",
			Help:    "Time taken by the AI model to answer.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
	)

	aiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "AI calls per provider, operation and outcome.",
		},
		[]string{"provider", "op", "success"},
	)

	aiBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ai_breaker_state",
			Help: "Circuit breaker state per breaker (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)
)

func ObserveChat(provider, model string, tokensIn, tokensOut int, latency time.Duration, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	gptResponseLatency.Observe(latency.Seconds())
	aiCallsTotal.WithLabelValues(norm(provider), "chat", strconv.FormatBool(success)).Inc()
}

func IncAICall(provider, op string, success bool) {
	aiCallsTotal.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).Inc()
}

func SetBreakerState(name string, state int) {
	aiBreakerState.WithLabelValues(norm(name)).Set(float64(state))
}
