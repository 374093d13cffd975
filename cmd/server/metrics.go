package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advertdna_registrations_total",
			Help: "Upload registrations by outcome",
		},
		[]string{"outcome"},
	)

	matchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advertdna_match_requests_total",
			Help: "Match-only queries by result",
		},
		[]string{"result"},
	)

	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advertdna_stream_probes_total",
			Help: "Stream probes by reachability",
		},
		[]string{"reachable"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advertdna_http_request_duration_seconds",
			Help:    "HTTP request durations by route and status",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route", "status"},
	)
)
