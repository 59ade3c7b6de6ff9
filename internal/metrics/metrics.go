// Package metrics provides Prometheus instrumentation for the rewards engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// LedgerTransactions counts ledger movements by type and status.
	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_ledger_transactions_total",
		Help: "Ledger transactions recorded",
	}, []string{"type", "status"})

	// LedgerAmount accumulates moved money by transaction type.
	LedgerAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_ledger_amount_total",
		Help: "Cumulative amount moved through the ledger",
	}, []string{"type"})

	// ChancesGranted counts granted chances by source.
	ChancesGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_chances_granted_total",
		Help: "Chances granted",
	}, []string{"source"})

	// ChancesConsumed counts spent chances by purpose.
	ChancesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_chances_consumed_total",
		Help: "Chances consumed",
	}, []string{"used_for"})

	// TicketsSold counts purchased tickets.
	TicketsSold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_tickets_sold_total",
		Help: "Tickets purchased",
	})

	LotteryEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_lottery_entries_total",
		Help: "Lottery entries created",
	})

	// DrawLatency tracks how long a full draw takes.
	DrawLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rewards_draw_latency_seconds",
		Help:    "Lottery draw duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DrawnEntries counts ranked entries across all draws.
	DrawnEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_drawn_entries_total",
		Help: "Entries ranked by lottery draws",
	})

	// WheelSpins counts spins by awarded prize type.
	WheelSpins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_wheel_spins_total",
		Help: "Wheel spins by awarded prize type",
	}, []string{"prize_type"})

	// SlidePlays counts slide plays by mode and outcome.
	SlidePlays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_slide_plays_total",
		Help: "Slide plays by mode and outcome",
	}, []string{"mode", "outcome"})

	// Referrals counts registered referrals.
	Referrals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_referrals_total",
		Help: "Referral registrations",
	}, []string{"suspicious"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewards_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// BroadcastsDropped counts events dropped because the hub buffer was full.
	BroadcastsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_broadcasts_dropped_total",
		Help: "Realtime events dropped on a full buffer",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewards_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// AddAmount adds a decimal amount to a counter. Float conversion only
// happens here, at the metrics boundary.
func AddAmount(c *prometheus.CounterVec, label string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	if f > 0 {
		c.WithLabelValues(label).Add(f)
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
