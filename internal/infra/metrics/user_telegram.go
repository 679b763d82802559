package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usersAuthenticatedTotal,
		telegramUpdatesTotal,
		telegramRateLimitTriggeredTotal,
		telegramSendErrorsTotal,
	)
}

var (
	usersAuthenticatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_authenticated_total",
			Help: "Authentication attempts by method and outcome.",
		},
		[]string{"method", "result"},
	)

	telegramUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Counts incoming updates by kind (command name, text, contact, other).",
		},
		[]string{"kind"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	telegramSendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_send_errors_total",
			Help: "Failed sends by reason (blocked, network, other).",
		},
		[]string{"reason"},
	)
)

func IncAuthentication(method, result string) {
	usersAuthenticatedTotal.WithLabelValues(norm(method), norm(result)).Inc()
}

func IncTelegramUpdate(kind string) {
	telegramUpdatesTotal.WithLabelValues(norm(kind)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncSendError(reason string) {
	telegramSendErrorsTotal.WithLabelValues(norm(reason)).Inc()
}
