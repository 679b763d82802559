package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolStats, connectionStatus, connectionLatency, queryLatency) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	connectionStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supabase_connection",
			Help: "Database connection status (1 connected, 0 down).",
		},
	)

	connectionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supabase_connection_latency_seconds",
			Help:    "Time spent establishing the database connection.",
			Buckets: prometheus.DefBuckets,
		},
	)

	queryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "latencia_supabase",
			Help:    "Database query latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func SetConnectionStatus(up bool) {
	if up {
		connectionStatus.Set(1)
		return
	}
	connectionStatus.Set(0)
}

func ObserveConnectionLatency(d time.Duration) {
	connectionLatency.Observe(d.Seconds())
}

// ObserveQuery is meant to be deferred: defer metrics.ObserveQuery("vector_search", time.Now())
func ObserveQuery(name string, start time.Time) {
	queryLatency.WithLabelValues(norm(name)).Observe(time.Since(start).Seconds())
}
