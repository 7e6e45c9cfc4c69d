package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the event pipeline and the read cache.
var (
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_consumed_total",
			Help: "Total number of events fetched from the event log",
		},
		[]string{"topic"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_dropped_total",
			Help: "Total number of malformed or irrelevant events dropped",
		},
		[]string{"topic"},
	)

	EventsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_failed_total",
			Help: "Total number of events whose handler returned an error",
		},
		[]string{"topic"},
	)

	DuplicateVerdictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_duplicate_verdicts_total",
			Help: "Total number of verdicts skipped because the transaction was already decided",
		},
	)

	VerdictsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antifraud_verdicts_published_total",
			Help: "Total number of verdicts published by the decision engine",
		},
		[]string{"verdict"},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "read_cache_hits_total",
			Help: "Total number of read cache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "read_cache_misses_total",
			Help: "Total number of read cache misses",
		},
	)

	CacheMergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "read_cache_merges_total",
			Help: "Total number of partial-fact merges applied to the read cache",
		},
	)

	TransactionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transactions_created_total",
			Help: "Total number of transactions created through the ingress API",
		},
	)
)

// Register installs all pipeline metrics on the given registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(
		EventsConsumedTotal,
		EventsDroppedTotal,
		EventsFailedTotal,
		DuplicateVerdictsTotal,
		VerdictsPublishedTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheMergesTotal,
		TransactionsCreatedTotal,
	)
}
