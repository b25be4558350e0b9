package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "membership_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "membership_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "membership_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	paymentVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "membership_layer",
			Subsystem: "payments",
			Name:      "verifications_total",
			Help:      "Total number of payment verification attempts.",
		},
		[]string{"outcome"},
	)

	tierUpgrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "membership_layer",
			Subsystem: "payments",
			Name:      "tier_upgrades_total",
			Help:      "Total number of tier upgrades applied to the ledger.",
		},
		[]string{"tier"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "membership_layer",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total number of gateway webhook events received.",
		},
		[]string{"type", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		paymentVerifications,
		tierUpgrades,
		webhookEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordVerification records the outcome of a payment verification attempt.
func RecordVerification(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	paymentVerifications.WithLabelValues(outcome).Inc()
}

// RecordTierUpgrade records a ledger upgrade to the given tier.
func RecordTierUpgrade(tier string) {
	if tier == "" {
		tier = "unknown"
	}
	tierUpgrades.WithLabelValues(tier).Inc()
}

// RecordWebhookEvent records a processed webhook event by type and result.
func RecordWebhookEvent(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEvents.WithLabelValues(eventType, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters so label cardinality stays bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "payments":
		if len(parts) == 1 {
			return "/payments"
		}
		if parts[1] == "verify" {
			return "/payments/verify/:id"
		}
		return "/payments/" + parts[1]
	case "leaderboard":
		if len(parts) >= 2 && parts[1] == "user" {
			return "/leaderboard/user/:id"
		}
		return "/leaderboard"
	default:
		return "/" + parts[0]
	}
}
