package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	workerTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_total",
			Help: "Tasks handled by the update worker pool by result (ok|error|panic|rejected).",
		},
		[]string{"result"},
	)
	workerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Tasks waiting in the worker pool queue.",
		},
	)
	indexRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_runs_total",
			Help: "Scheduled indexer runs by result (ok|error|skipped).",
		},
		[]string{"result"},
	)
)

func init() {
	register(workerTasks, workerQueueDepth, indexRuns)
}

func IncWorkerTask(result string) { workerTasks.WithLabelValues(norm(result)).Inc() }

func SetWorkerQueueDepth(n int) { workerQueueDepth.Set(float64(n)) }

func IncIndexRun(result string) { indexRuns.WithLabelValues(norm(result)).Inc() }
