package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LockAcquireTotal counts acquisition outcomes: acquired, conflict,
	// error.
	LockAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebook_lock_acquire_total",
		Help: "Seat lock acquisition attempts by result",
	}, []string{"result"})

	// LockAcquireRetries counts transparent retries after transient store
	// failures during acquisition.
	LockAcquireRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cinebook_lock_acquire_retries_total",
		Help: "Seat lock acquisition retries after transient store errors",
	})

	// BookingTransitionsTotal counts state-machine transitions by target
	// state.
	BookingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebook_booking_transitions_total",
		Help: "Booking state transitions by resulting status",
	}, []string{"to"})

	// ReaperSweepsTotal counts reaper sweep executions.
	ReaperSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cinebook_reaper_sweeps_total",
		Help: "Lock expiry sweep executions",
	})

	// ReaperExpiredTotal counts locks reclaimed by the reaper.
	ReaperExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cinebook_reaper_expired_locks_total",
		Help: "Expired seat locks reclaimed by the sweep",
	})

	// ReaperErrorsTotal counts sweep items that failed and will be retried
	// on a later pass.
	ReaperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cinebook_reaper_errors_total",
		Help: "Errors during lock expiry sweeps",
	})

	// PaymentResultsTotal counts gateway outcomes applied to the ledger.
	PaymentResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinebook_payment_results_total",
		Help: "Payment gateway results by final transaction status",
	}, []string{"status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cinebook_http_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// HTTPMetrics records request latency per route.
func HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
