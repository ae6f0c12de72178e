package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters for the client's moving parts. Exposed on the debug port when
// METRICS_ENABLED is set; always collected so tests can assert on them.
var (
	SeatMapPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tribune_seatmap_polls_total",
		Help: "Full seat-map polls issued, including out-of-band refreshes",
	})

	DeltasApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tribune_seat_deltas_applied_total",
		Help: "Seat-status deltas applied to the cached seat map",
	})

	DeltasDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tribune_seat_deltas_dropped_total",
		Help: "Deltas dropped because no seat map was cached yet",
	})

	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tribune_stream_reconnects_total",
		Help: "Seat-stream reconnect attempts after a transport failure",
	})

	HoldsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tribune_holds_created_total",
		Help: "Holds successfully created by this session",
	})

	HoldsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tribune_holds_expired_total",
		Help: "Holds evicted locally after their expiry passed",
	})

	CheckoutOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tribune_checkout_outcomes_total",
		Help: "Terminal checkout outcomes by status",
	}, []string{"status"})
)

// Handler serves the prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
