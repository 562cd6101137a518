// Package metrics provides Prometheus instrumentation for the gateway.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersPlaced counts accepted orders by order type.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_orders_placed_total",
		Help: "Total number of orders accepted",
	}, []string{"type"})

	// OrdersRejected counts engine rejections by operation and reason.
	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_orders_rejected_total",
		Help: "Order operations rejected by validation",
	}, []string{"op", "reason"})

	// OrdersCancelled counts successful cancels.
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	// Fills counts completed fills by side.
	Fills = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_fills_total",
		Help: "Total number of order fills",
	}, []string{"side"})

	// FillLatency measures time from order placement to fill.
	FillLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_fill_latency_seconds",
		Help:    "Delay between order creation and fill",
		Buckets: []float64{0.05, 0.1, 0.15, 0.25, 0.5, 1, 2.5},
	})

	// OpenPositions tracks the number of live position records.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_open_positions",
		Help: "Number of open position records",
	})

	// Sessions tracks issued session tokens.
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_sessions",
		Help: "Number of stored session tokens",
	})

	// HubClients tracks connected WebSocket clients per hub.
	HubClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_hub_clients",
		Help: "Number of connected hub clients",
	}, []string{"hub"})

	// HubMessages counts outbound hub messages by outcome (sent, dropped).
	HubMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_hub_messages_total",
		Help: "Outbound hub messages",
	}, []string{"hub", "event", "outcome"})

	// MarketDataTicks counts synthesizer ticks that produced events.
	MarketDataTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_market_data_ticks_total",
		Help: "Synthesizer ticks with at least one subscribed contract",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

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

// Hijack lets the hub endpoints upgrade to WebSocket through the
// middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
