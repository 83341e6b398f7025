package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecipientsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipients_sent_total",
			Help: "Recipients delivered successfully",
		},
	)

	RecipientsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipients_failed_total",
			Help: "Recipients whose send attempt failed",
		},
	)

	SendAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "send_attempts_total",
			Help: "Physical transport send attempts (one per chunk)",
		},
	)

	CampaignsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_completed_total",
			Help: "Campaigns driven to completed",
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_ticks_total",
			Help: "Completed dispatch ticks",
		},
	)

	CapacityExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "capacity_exhausted_total",
			Help: "Ticks ended early because no mailbox had quota left",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		RecipientsSent,
		RecipientsFailed,
		SendAttempts,
		CampaignsCompleted,
		TicksTotal,
		CapacityExhausted,
	)
}
