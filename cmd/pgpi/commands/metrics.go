package commands

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// commandMetrics counts subcommand invocations and progress-calculation
// outcomes, exposed via --metrics-addr for operators running pgpi as a
// recurring cron job who want invocation counts in their existing
// Prometheus scrape setup rather than parsing stdout. Each App gets its
// own registry rather than the global default, since a process may
// construct more than one root command (tests do) and the default
// registry panics on duplicate registration.
type commandMetrics struct {
	registry       *prometheus.Registry
	invocations    *prometheus.CounterVec
	progressCalls  prometheus.Counter
	progressErrors prometheus.Counter
}

func newCommandMetrics() *commandMetrics {
	reg := prometheus.NewRegistry()
	m := &commandMetrics{
		registry: reg,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgpi_command_invocations_total",
			Help: "Number of times each pgpi subcommand has run.",
		}, []string{"command"}),
		progressCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgpi_progress_calculations_total",
			Help: "Number of progress subcommand calculations performed.",
		}),
		progressErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgpi_progress_calculation_errors_total",
			Help: "Number of progress subcommand calculations that failed.",
		}),
	}
	reg.MustRegister(m.invocations, m.progressCalls, m.progressErrors)
	return m
}

// serveMetrics starts a background HTTP server exposing /metrics at addr.
// It never blocks the caller; a bind failure only disables the endpoint,
// since observability is optional for a one-shot CLI invocation.
func serveMetrics(addr string, m *commandMetrics) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
