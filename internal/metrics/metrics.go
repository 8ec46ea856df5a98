// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the key store and the migration runner.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keyrepository"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)
	KeyOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_operations_total",
			Help:      "Key store operations by outcome.",
		},
		[]string{"operation", "result"},
	)
	KeysStored = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keys_stored",
			Help:      "Live (not soft-deleted) key records per type, sampled on scrape.",
		},
		[]string{"type"},
	)
	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Schema migrations run by direction and outcome.",
		},
		[]string{"direction", "result"},
	)
)

// Register adds every collector to reg. Collectors that are already
// registered are ignored so Register may be called more than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		KeyOperationsTotal,
		KeysStored,
		MigrationsTotal,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Result maps an error onto the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
