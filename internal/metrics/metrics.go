// Package metrics holds the Prometheus collectors for the client core and the
// reference backend. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizgram"

// Toggle outcomes.
const (
	ToggleConfirmed = "confirmed"
	ToggleReverted  = "reverted"
	ToggleIgnored   = "ignored"
	ToggleDiscarded = "discarded"
)

// View record outcomes.
const (
	ViewRecorded  = "recorded"
	ViewDuplicate = "duplicate"
	ViewFailed    = "failed"
)

// Refresh outcomes.
const (
	RefreshOK     = "ok"
	RefreshFailed = "failed"
)

type Metrics struct {
	toggles      *prometheus.CounterVec
	viewRecords  *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	refreshIDs   prometheus.Histogram
	trackedViews prometheus.Gauge

	serverMutations *prometheus.CounterVec
	serverViews     prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		toggles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "relationship_toggles_total",
			Help:      "Relationship toggles by outcome",
		}, []string{"outcome"}),

		viewRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "view_records_total",
			Help:      "View record attempts by outcome",
		}, []string{"outcome"}),

		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "view_refresh_batches_total",
			Help:      "View count refresh batches by outcome",
		}, []string{"outcome"}),

		refreshIDs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "view_refresh_ids",
			Help:      "Number of entity ids per refresh call",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		trackedViews: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "tracked_entities",
			Help:      "Entities currently observed for background refresh",
		}),

		serverMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "relationship_mutations_total",
			Help:      "Relationship mutations by resulting state and whether anything changed",
		}, []string{"state", "changed"}),

		serverViews: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "views_recorded_total",
			Help:      "Views recorded",
		}),
	}
}

func (m *Metrics) Toggle(outcome string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ViewRecord(outcome string) {
	if m == nil {
		return
	}
	m.viewRecords.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RefreshBatch(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RefreshSize(n int) {
	if m == nil {
		return
	}
	m.refreshIDs.Observe(float64(n))
}

func (m *Metrics) Tracked(n int) {
	if m == nil {
		return
	}
	m.trackedViews.Set(float64(n))
}

func (m *Metrics) ServerMutation(state string, changed bool) {
	if m == nil {
		return
	}
	c := "false"
	if changed {
		c = "true"
	}
	m.serverMutations.WithLabelValues(state, c).Inc()
}

func (m *Metrics) ServerView() {
	if m == nil {
		return
	}
	m.serverViews.Inc()
}
