// Package promlib holds the prometheus collectors of the service.
package promlib

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CampaignSends counts queue processor outcomes by result (sent, failed, unrecorded)
	CampaignSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsflow_campaign_sends_total",
		Help: "Campaign membership send outcomes",
	}, []string{"result"})

	// WebhookEvents counts webhook deliveries by event type and error code
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsflow_webhook_events_total",
		Help: "Received webhook events",
	}, []string{"event_type", "code"})

	// GatewayRequests ...
	GatewayRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smsflow_gateway_request_duration_seconds",
		Help:    "Provider API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// JobRuns ...
	JobRuns = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smsflow_job_duration_seconds",
		Help:    "Periodic job duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"job", "result"})

	// ReconciledMessages counts reconciled messages by outcome (created, existing, skipped, failed)
	ReconciledMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsflow_reconciled_messages_total",
		Help: "Messages seen by reconciliation",
	}, []string{"outcome"})

	// RetryEntries counts recovery outcomes (resolved, failed, exhausted)
	RetryEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsflow_retry_entries_total",
		Help: "Failed ingestion retry outcomes",
	}, []string{"outcome"})

	// OrphanedActivities ...
	OrphanedActivities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smsflow_orphaned_activities",
		Help: "Activities missing a conversation or contact link",
	}, []string{"link"})
)

// ObserveSince ...
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
