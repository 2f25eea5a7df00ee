package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "makenaide_signals_total",
			Help: "Total number of trading signals processed by terminal status",
		},
		[]string{"status"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "makenaide_orders_total",
			Help: "Total number of orders placed on the exchange",
		},
		[]string{"market", "side"},
	)

	loopErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "makenaide_loop_errors_total",
			Help: "Total number of monitoring loop errors",
		},
	)

	totalBalanceKRW = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "makenaide_total_balance_krw",
			Help: "Last observed total account balance in KRW",
		},
	)

	pendingSignals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "makenaide_pending_signals",
			Help: "Number of pending signals in the queue window",
		},
	)
)

func init() {
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(loopErrorsTotal)
	prometheus.MustRegister(totalBalanceKRW)
	prometheus.MustRegister(pendingSignals)
}

// RecordSignal records one signal reaching a terminal status.
func RecordSignal(status string) {
	signalsTotal.WithLabelValues(status).Inc()
}

// RecordOrder records one placed order.
func RecordOrder(market, side string) {
	ordersTotal.WithLabelValues(market, side).Inc()
}

// RecordLoopError records one monitoring loop error.
func RecordLoopError() {
	loopErrorsTotal.Inc()
}

// SetTotalBalance updates the balance gauge.
func SetTotalBalance(krw float64) {
	totalBalanceKRW.Set(krw)
}

// SetPendingSignals updates the queue depth gauge.
func SetPendingSignals(count int64) {
	pendingSignals.Set(float64(count))
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
