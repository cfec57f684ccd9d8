package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Subtitle run metrics
var (
	SubtitleDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_downloads_total",
			Help: "Total number of compressed subtitle downloads.",
		},
		[]string{"status"},
	)

	// SearchesTotal counts lookups by where the result came from ("cache" or "remote").
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_searches_total",
			Help: "Total number of subtitle searches.",
		},
		[]string{"source"},
	)

	// HitsProcessedTotal counts materialized hits by outcome ("success" or the error kind).
	HitsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_hits_processed_total",
			Help: "Total number of search hits processed.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		SubtitleDownloadsTotal,
		SearchesTotal,
		HitsProcessedTotal,
	)
}
