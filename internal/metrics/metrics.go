package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics interface handlers and services record through.
// A noop implementation is used when metrics are disabled.
type Recorder interface {
	// Identity
	RecordSignUp(success bool)
	RecordSignIn(method string, success bool)
	RecordSignOut()
	RecordOAuthCallback(provider string, success bool)

	// Automations
	RecordZapCreated(triggerType string)

	// Gmail linking
	RecordLinkCallback(result string)
	RecordTokenExchange(duration time.Duration, success bool)

	// Gauges (updated by the background job)
	SetZapCounts(draft, active int)
	SetLinkedTokensCount(count int)

	// Store
	RecordDatabaseQueryError(operation string)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Identity
	SignUpsTotal        *prometheus.CounterVec
	SignInsTotal        *prometheus.CounterVec
	SignOutsTotal       prometheus.Counter
	OAuthCallbacksTotal *prometheus.CounterVec

	// Automations
	ZapsCreatedTotal *prometheus.CounterVec
	ZapsByStatus     *prometheus.GaugeVec

	// Gmail linking
	LinkCallbacksTotal    *prometheus.CounterVec
	TokenExchangeDuration *prometheus.HistogramVec
	LinkedTokens          prometheus.Gauge

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Store
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on the enabled flag.
// Uses sync.Once so Prometheus metrics are only registered once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		SignUpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowmate_signups_total",
				Help: "Total number of sign-up attempts",
			},
			[]string{"result"},
		),
		SignInsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowmate_signins_total",
				Help: "Total number of sign-in attempts by method",
			},
			[]string{"method", "result"},
		),
		SignOutsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flowmate_signouts_total",
				Help: "Total number of sign-outs",
			},
		),
		OAuthCallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowmate_oauth_callbacks_total",
				Help: "Total number of federated sign-in callbacks by provider",
			},
			[]string{"provider", "result"},
		),
		ZapsCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowmate_zaps_created_total",
				Help: "Total number of zaps created by trigger type",
			},
			[]string{"trigger_type"},
		),
		ZapsByStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowmate_zaps",
				Help: "Current number of zaps by status",
			},
			[]string{"status"},
		),
		LinkCallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowmate_link_callbacks_total",
				Help: "Total number of Gmail linking callbacks by result",
			},
			[]string{"result"},
		),
		TokenExchangeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowmate_token_exchange_duration_seconds",
				Help:    "Duration of authorization-code exchanges",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		LinkedTokens: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowmate_linked_tokens",
				Help: "Current number of stored provider tokens",
			},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowmate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowmate_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowmate_http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests",
			},
		),
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowmate_database_query_errors_total",
				Help: "Total number of failed database queries by operation",
			},
			[]string{"operation"},
		),
	}
}

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}

func (m *Metrics) RecordSignUp(success bool) {
	m.SignUpsTotal.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) RecordSignIn(method string, success bool) {
	m.SignInsTotal.WithLabelValues(method, result(success)).Inc()
}

func (m *Metrics) RecordSignOut() {
	m.SignOutsTotal.Inc()
}

func (m *Metrics) RecordOAuthCallback(provider string, success bool) {
	m.OAuthCallbacksTotal.WithLabelValues(provider, result(success)).Inc()
}

func (m *Metrics) RecordZapCreated(triggerType string) {
	m.ZapsCreatedTotal.WithLabelValues(triggerType).Inc()
}

func (m *Metrics) RecordLinkCallback(callbackResult string) {
	m.LinkCallbacksTotal.WithLabelValues(callbackResult).Inc()
}

func (m *Metrics) RecordTokenExchange(duration time.Duration, success bool) {
	m.TokenExchangeDuration.WithLabelValues(result(success)).Observe(duration.Seconds())
}

func (m *Metrics) SetZapCounts(draft, active int) {
	m.ZapsByStatus.WithLabelValues("draft").Set(float64(draft))
	m.ZapsByStatus.WithLabelValues("active").Set(float64(active))
}

func (m *Metrics) SetLinkedTokensCount(count int) {
	m.LinkedTokens.Set(float64(count))
}

func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
