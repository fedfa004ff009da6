package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "poller",
		Name:      "polls_total",
		Help:      "Total filter polls",
	})

	EntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "poller",
		Name:      "entries_total",
		Help:      "Total filter entries returned",
	})

	StepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "poller",
		Name:      "step_errors_total",
		Help:      "Total poll loop errors by stage",
	}, []string{"stage"})

	PollLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay",
		Subsystem: "poller",
		Name:      "poll_duration_seconds",
		Help:      "Duration of one poll including notifications",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	FilterHead = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "filter",
		Name:      "head_block",
		Help:      "Last block covered by the event filter",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "notifier",
		Name:      "sent_total",
		Help:      "Telegram send attempts by result",
	}, []string{"result"})

	JournalErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "notifier",
		Name:      "journal_errors_total",
		Help:      "Total notification journal write failures",
	})
)
