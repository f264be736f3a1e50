// Package metrics exposes Prometheus collectors for authorizations,
// transfers, ledger writes and the operator HTTP view.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	authorizationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "approvals",
			Subsystem: "authorization",
			Name:      "outcomes_total",
			Help:      "Authorization requests by terminal state and failed phase.",
		},
		[]string{"state", "phase"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "approvals",
			Subsystem: "transfer",
			Name:      "requests_total",
			Help:      "Privileged transfer requests by outcome.",
		},
		[]string{"outcome"},
	)

	ledgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "approvals",
			Subsystem: "ledger",
			Name:      "writes_total",
			Help:      "Ledger insert attempts by result.",
		},
		[]string{"result"},
	)

	confirmationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "approvals",
			Subsystem: "chain",
			Name:      "confirmation_duration_seconds",
			Help:      "Time from broadcast until the receipt was observed.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		},
		[]string{"method"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "approvals",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Operator view HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		authorizationOutcomes,
		transfers,
		ledgerWrites,
		confirmationDuration,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Push sends the registry to a Pushgateway under job. Short-lived CLI
// commands exit before any scrape, so they push on the way out.
func Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// RecordAuthorization counts an authorization that reached a terminal state.
// phase is empty for successful outcomes.
func RecordAuthorization(state, phase string) {
	authorizationOutcomes.WithLabelValues(state, phase).Inc()
}

// RecordTransfer counts a transfer by outcome ("success", "not_authorized", ...).
func RecordTransfer(outcome string) {
	transfers.WithLabelValues(outcome).Inc()
}

// RecordLedgerWrite counts a ledger insert.
func RecordLedgerWrite(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	ledgerWrites.WithLabelValues(result).Inc()
}

// ObserveConfirmation records how long a contract call took to be mined.
func ObserveConfirmation(method string, d time.Duration) {
	confirmationDuration.WithLabelValues(method).Observe(d.Seconds())
}

// InstrumentHandler counts requests served by next. route names the matched
// pattern so wallet addresses never become label values.
func InstrumentHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(strings.ToUpper(r.Method), route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
