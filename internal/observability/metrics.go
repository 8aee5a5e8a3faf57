package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "app_messaging_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// Deliveries tracks per-recipient delivery outcomes
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_messaging_deliveries_total",
			Help: "Number of per-recipient delivery attempts",
		},
		[]string{"channel", "outcome"},
	)

	// RateLimited tracks rate-limit denials
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_messaging_rate_limited_total",
			Help: "Number of sends denied by the rate limiter",
		},
		[]string{"policy"},
	)

	// OTPChallenges tracks OTP challenge state transitions
	OTPChallenges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_messaging_otp_challenges_total",
			Help: "Number of OTP challenges by transition",
		},
		[]string{"transition"},
	)

	// ProviderRetries tracks transient-failure retries against the gateway
	ProviderRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "app_messaging_provider_retries_total",
			Help: "Number of provider calls retried after a transient failure",
		},
	)

	// ActiveConnections tracks active connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_messaging_active_connections",
			Help: "Number of active connections",
		},
	)
)
