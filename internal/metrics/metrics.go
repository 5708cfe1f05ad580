package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailify"

// Outgoing mail metrics
var (
	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of send attempts",
		},
		[]string{"transport", "status"},
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time from render start to transport acknowledgement",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"transport"},
	)

	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_renders_total",
			Help:      "Total number of template renders",
		},
		[]string{"status"},
	)

	ImagesStagedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_staged_total",
			Help:      "Total number of images re-encoded into the staging directory",
		},
	)
)

// Scheduled send metrics
var (
	ScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_sends_total",
			Help:      "Scheduled sends by outcome",
		},
		[]string{"status"}, // "armed", "fired", "cancelled", "rejected"
	)

	ScheduledPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_sends_pending",
			Help:      "Scheduled sends whose timer has not fired or been cancelled",
		},
	)
)

// Mailbox metrics
var (
	MailboxReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mailbox_reads_total",
			Help:      "Total number of mailbox read calls",
		},
		[]string{"status"},
	)

	MessagesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_fetched_total",
			Help:      "Total number of messages fetched from mailboxes",
		},
	)
)
