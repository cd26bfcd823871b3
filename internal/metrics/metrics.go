// Package metrics exposes sweep health counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_pages_fetched_total",
			Help: "Total number of inventory pages fetched",
		},
	)

	ObservationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_observations_total",
			Help: "Total number of vehicle observations received",
		},
	)

	ObservationsMalformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_observations_malformed_total",
			Help: "Total number of observations skipped for missing required fields",
		},
	)

	ChangeEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_change_events_total",
			Help: "Total number of field-level change events emitted",
		},
	)

	VehiclesInsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_vehicles_inserted_total",
			Help: "Total number of vehicles seen for the first time",
		},
	)

	VehiclesRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_vehicles_removed_total",
			Help: "Total number of vehicles marked removed from inventory",
		},
	)

	VehiclesReactivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_vehicles_reactivated_total",
			Help: "Total number of removed vehicles observed again",
		},
	)

	RemovalChecksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_removal_checks_total",
			Help: "Total number of targeted VIN re-checks performed",
		},
	)

	FetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lotwatch_fetch_retries_total",
			Help: "Total number of retried source fetches",
		},
	)

	PageFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lotwatch_page_fetch_duration_seconds",
			Help:    "Duration of inventory page fetches",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to
// call more than once; only the first call registers.
func Register() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(PagesFetchedTotal)
	prometheus.MustRegister(ObservationsTotal)
	prometheus.MustRegister(ObservationsMalformedTotal)
	prometheus.MustRegister(ChangeEventsTotal)
	prometheus.MustRegister(VehiclesInsertedTotal)
	prometheus.MustRegister(VehiclesRemovedTotal)
	prometheus.MustRegister(VehiclesReactivatedTotal)
	prometheus.MustRegister(RemovalChecksTotal)
	prometheus.MustRegister(FetchRetriesTotal)
	prometheus.MustRegister(PageFetchDuration)
}

// Serve exposes /metrics on the given address in the background. A sweep
// is a batch job, so the listener lives only for the process lifetime
// and is not shut down gracefully.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
