// Package metrics exposes Prometheus instrumentation for the sync layer.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "maharat"

// Recorder groups the collectors of one process.
type Recorder struct {
	refreshes     *prometheus.CounterVec
	refreshTime   prometheus.Histogram
	mutations     *prometheus.CounterVec
	attachments   *prometheus.CounterVec
	notifications prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Snapshot refreshes by result (ok, failed, superseded).",
		}, []string{"result"}),
		refreshTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of snapshot refreshes.",
			Buckets:   prometheus.DefBuckets,
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_total",
			Help:      "Remote writes by table, operation and result.",
		}, []string{"table", "op", "result"}),
		attachments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_cache_total",
			Help:      "Attachment cache lookups by result (hit, miss, deleted, error).",
		}, []string{"result"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_notifications_total",
			Help:      "Change notifications received.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.refreshes, r.refreshTime, r.mutations, r.attachments, r.notifications)
	}
	return r
}

// Refresh records one refresh outcome.
func (r *Recorder) Refresh(result string, took time.Duration) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(result).Inc()
	r.refreshTime.Observe(took.Seconds())
}

// Mutation records one remote write.
func (r *Recorder) Mutation(table, op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.mutations.WithLabelValues(table, op, result).Inc()
}

// Attachment records one cache lookup.
func (r *Recorder) Attachment(result string) {
	if r == nil {
		return
	}
	r.attachments.WithLabelValues(result).Inc()
}

// Notification records one change notification.
func (r *Recorder) Notification() {
	if r == nil {
		return
	}
	r.notifications.Inc()
}
