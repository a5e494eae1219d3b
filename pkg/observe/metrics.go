// Package observe provides Prometheus metrics for the client lifecycle.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the instrumentation for queries, ingests and the
// citation/highlight interactions.
type Metrics struct {
	QueriesTotal            *prometheus.CounterVec
	QueryDuration           prometheus.Histogram
	IngestsTotal            *prometheus.CounterVec
	StaleResponsesDiscarded prometheus.Counter
	CitationClicksTotal     prometheus.Counter
}

// NewMetrics creates and registers all metrics on reg; pass a fresh
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpanel_queries_total",
				Help: "Total number of query submissions by outcome",
			},
			[]string{"status"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragpanel_query_duration_seconds",
				Help:    "Duration of successful queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		IngestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpanel_ingests_total",
				Help: "Total number of ingest submissions by outcome",
			},
			[]string{"status"},
		),
		StaleResponsesDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragpanel_stale_responses_discarded_total",
				Help: "Completed query responses ignored because a newer query superseded them",
			},
		),
		CitationClicksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragpanel_citation_clicks_total",
				Help: "Total number of citation clicks",
			},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.IngestsTotal,
		m.StaleResponsesDiscarded,
		m.CitationClicksTotal,
	)
	return m
}
