package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register queues collectors from each file's init; MustRegister adds them.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

func init() { register(buildInfo, cacheRequestsTotal) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Always 1; labels carry version, commit and run mode (webhook, polling, indexer).",
		},
		[]string{"version", "commit", "mode"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by cache (answer, user) and result (hit, miss).",
		},
		[]string{"cache", "result"},
	)
)

// MustRegister adds every queued collector to the default registry once.
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}

// Handler registers the collectors and returns the scrape handler. Gather
// errors are served as HTTP 500 with the failing collector named.
func Handler() http.Handler {
	MustRegister()
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{ErrorHandling: promhttp.HTTPErrorOnError}),
	)
}

func SetBuildInfo(version, commit, mode string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, norm(mode)).Set(1)
}

func IncCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), norm(result)).Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
