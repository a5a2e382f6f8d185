package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// scansTotal counts physical scan statements by source
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versa_query_scans_total",
		Help: "Physical scan statements executed by source",
	}, []string{"source"})

	// rowsFilteredTotal counts rows dropped in application code
	rowsFilteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versa_query_rows_filtered_total",
		Help: "Scan rows dropped after the backend returned them, by source and reason",
	}, []string{"source", "reason"})

	// executeDuration tracks query latency by path scope
	executeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "versa_query_execute_duration_seconds",
		Help:    "Query execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"scope"})
)
