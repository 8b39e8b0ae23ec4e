// Package metrics exposes Prometheus instrumentation for the gateway's
// probe races, cache behavior, tee throughput and upload/delete outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the gateway registers. It is built once
// at startup and passed down to the gateway and HTTP layers.
type Metrics struct {
	ProbeOutcomes   *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	RaceDuration    *prometheus.HistogramVec
	TeeBytes        prometheus.Counter
	UploadOutcomes  *prometheus.CounterVec
	DeleteOutcomes  *prometheus.CounterVec
	InFlightFetches prometheus.Gauge
}

// New registers every collector against reg and returns the bundle. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test packages.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ProbeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nixgate",
			Name:      "probe_outcomes_total",
			Help:      "Count of mirror and origin probe races by tier and outcome; individual probes are not counted.",
		}, []string{"tier", "outcome"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nixgate",
			Name:      "cache_lookups_total",
			Help:      "Count of resolution-cache lookups by result kind.",
		}, []string{"kind"}),

		RaceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nixgate",
			Name:      "race_duration_seconds",
			Help:      "Duration of mirror/origin probe races.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),

		TeeBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nixgate",
			Name:      "tee_bytes_forwarded_total",
			Help:      "Total bytes forwarded through the origin-to-client-and-upload tee.",
		}),

		UploadOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nixgate",
			Name:      "upload_outcomes_total",
			Help:      "Count of object-store uploads by outcome.",
		}, []string{"outcome"}),

		DeleteOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nixgate",
			Name:      "delete_outcomes_total",
			Help:      "Count of object-store deletes by outcome.",
		}, []string{"outcome"}),

		InFlightFetches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nixgate",
			Name:      "in_flight_fetches",
			Help:      "Number of GET requests currently streaming an origin fetch.",
		}),
	}
}

// Handler returns the http.Handler to mount at the configured metrics
// path. It only serves collectors registered against reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
