// Package metrics holds the Prometheus collectors shared by the API server
// and the notifier.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	LeadsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_leads_created_total",
			Help: "Leads created by lead source",
		},
		[]string{"source"},
	)
	OTPSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_otp_sent_total",
			Help: "One-time codes dispatched by channel and result",
		},
		[]string{"channel", "result"},
	)
	DigestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_digest_runs_total",
			Help: "Overdue digest runs by result",
		},
		[]string{"result"},
	)
)

var once sync.Once

// Init registers every collector with the default registry.  It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		for name, c := range map[string]prometheus.Collector{
			"http_requests_total":           HTTPRequests,
			"http_request_duration_seconds": HTTPDuration,
			"crm_leads_created_total":       LeadsCreated,
			"crm_otp_sent_total":            OTPSent,
			"crm_digest_runs_total":         DigestRuns,
		} {
			if err := prometheus.Register(c); err != nil {
				log.Error().Err(err).Str("metric", name).Msg("failed to register metric")
			}
		}
	})
}

// SourceLabel keeps the lead source label set bounded.
func SourceLabel(source string) string {
	switch source {
	case "":
		return "unknown"
	case "website", "referral", "walkin", "campaign", "social", "call", "partner":
		return source
	}
	return "other"
}
