package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "router_signals_received_total", Help: "Signals that reached the admission gate"},
	)
	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "router_signals_rejected_total", Help: "Signals rejected, by gate"},
		[]string{"gate"},
	)
	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "router_executions_total", Help: "Terminal signal outcomes"},
		[]string{"status"},
	)
	QueueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "router_queue_dropped_total", Help: "Signals dropped at the full queue"},
	)
)

func init() {
	prometheus.MustRegister(SignalsReceived, SignalsRejected, Executions, QueueDropped)
}

// Serve exposes /metrics on addr
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
