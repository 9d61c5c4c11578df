package main

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cardano_connector",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of http requests by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})

	transactionsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardano_connector",
		Name:      "transactions_built_total",
		Help:      "Transfers built, by chain and result kind.",
	}, []string{"chain", "kind"})

	broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardano_connector",
		Name:      "broadcasts_total",
		Help:      "Broadcast attempts by outcome.",
	}, []string{"outcome"})
)

func observeRequest(route string, status int, started time.Time) {
	requestDuration.WithLabelValues(route, http.StatusText(status)).Observe(time.Since(started).Seconds())
}

func serveMetrics(hostPort string) error {
	h := http.NewServeMux()
	h.Handle("/metrics", promhttp.Handler())
	log.Info().Msgf("metrics listening on %s", hostPort)
	return errors.WithStack(http.ListenAndServe(hostPort, h))
}
