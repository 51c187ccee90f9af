package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LocationsAttempted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_locations_attempted_total",
		Help: "Location samples handed to the store",
	})
	LocationsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_locations_stored_total",
		Help: "Location samples physically written",
	})
	LocationsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_locations_filtered_total",
		Help: "Location samples skipped by the minimum-distance filter",
	})
	LocationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_locations_failed_total",
		Help: "Location writes that hit a storage fault",
	})
	NotifyDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_notify_delivered_total",
		Help: "Event notifications delivered via the primary transport",
	})
	NotifySuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_notify_suppressed_total",
		Help: "Event notifications suppressed by the debounce window",
	})
	NotifyFallback = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_notify_fallback_total",
		Help: "Event notifications sent via the SMS fallback",
	})
	NotifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_notify_dropped_total",
		Help: "Event notifications dropped after all transports failed",
	})
	GeocodeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_geocode_cache_hits_total",
		Help: "Reverse-geocode lookups answered from the cache",
	})
	GeocodeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_geocode_cache_misses_total",
		Help: "Reverse-geocode lookups that went to the remote service",
	})
	GeocodeRemoteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locationlogger_geocode_remote_errors_total",
		Help: "Remote reverse-geocode lookups that failed",
	})
)

// StartMetricsServer serves /metrics and /healthz on its own port.
func StartMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	_ = http.ListenAndServe(":"+port, mux)
}
