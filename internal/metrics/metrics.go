// Package metrics holds the Prometheus collectors exported by tripledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripledger"

var (
	// RateLookups counts exchange-rate lookups by result: identity, hit, miss, fallback or canceled.
	RateLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rates",
		Name:      "lookups_total",
		Help:      "Exchange rate lookups by result.",
	}, []string{"result"})

	// ReconcilePasses counts reconciliation passes by outcome: ok, failed.
	ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "passes_total",
		Help:      "Reconciliation passes by outcome.",
	}, []string{"outcome"})

	// ReconcileRows counts committed row mutations by kind: insert, update, delete.
	ReconcileRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "rows_total",
		Help:      "Expense rows mutated by reconciliation.",
	}, []string{"mutation"})

	// ReconcileDuration observes pass latency including the wait for the group lock.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Reconciliation pass duration.",
		Buckets:   prometheus.DefBuckets,
	})

	// LedgerRequests counts remote ledger calls by operation and outcome.
	LedgerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "requests_total",
		Help:      "Remote ledger requests by operation and outcome.",
	}, []string{"op", "outcome"})

	// RPCRequests counts Connect RPCs by procedure and code.
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "RPC requests by procedure and result code.",
	}, []string{"procedure", "code"})

	// RPCDuration observes RPC latency by procedure.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "duration_seconds",
		Help:      "RPC latency by procedure.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
