package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(similarityScore, contextLength, answersTotal) }

var (
	similarityScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "similitud_score",
			Help:    "Cosine similarity scores of retrieved documents.",
			Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
		},
	)

	contextLength = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contexto_length",
			Help:    "Context length in words before it is sent to the model.",
			Buckets: []float64{0, 50, 100, 250, 500, 750, 1000, 1500},
		},
	)

	answersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answers_total",
			Help: "Answers produced by outcome (answered, cached, empty, failed).",
		},
		[]string{"result"},
	)
)

func ObserveSimilarity(score float64) { similarityScore.Observe(score) }

func ObserveContextLength(words int) { contextLength.Observe(float64(words)) }

func IncAnswer(result string) { answersTotal.WithLabelValues(norm(result)).Inc() }
