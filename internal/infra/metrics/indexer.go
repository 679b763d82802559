package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(embeddingsGenerated, embeddingsProcessTime, invalidDocuments, failedBatches)
}

var (
	embeddingsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "embeddings_generados",
			Help: "Total embeddings generated.",
		},
	)

	embeddingsProcessTime = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "embeddings_process_time",
			Help: "Time spent generating embeddings per provider call.",
		},
	)

	invalidDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documentos_invalidos",
			Help: "Documents skipped because they were invalid.",
		},
	)

	failedBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "embedding_batches_failed_total",
			Help: "Embedding batches that exhausted their retries and were dumped.",
		},
	)
)

func AddEmbeddings(n int) { embeddingsGenerated.Add(float64(n)) }

func ObserveEmbeddingTime(d time.Duration) { embeddingsProcessTime.Observe(d.Seconds()) }

func IncInvalidDocument() { invalidDocuments.Inc() }

func IncFailedBatch() { failedBatches.Inc() }
