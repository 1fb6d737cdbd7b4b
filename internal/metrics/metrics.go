// Package metrics exposes Prometheus collectors for draft synchronization.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sync holds the collectors updated by the sync coordinator.
type Sync struct {
	Runs     prometheus.Counter
	Synced   *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Online   prometheus.Gauge
}

// NewSync creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewSync(reg prometheus.Registerer) *Sync {
	m := &Sync{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drafts_sync_runs_total",
			Help: "Sync passes that ran while the backend was reachable.",
		}),
		Synced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drafts_synced_total",
			Help: "Drafts accepted by the backend.",
		}, []string{"type"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drafts_sync_failures_total",
			Help: "Draft uploads that failed and were left unsynced.",
		}, []string{"type"}),
		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drafts_backend_online",
			Help: "1 while the backend is reachable.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Synced, m.Failures, m.Online)
	}
	return m
}

// SetOnline records the connectivity state.
func (m *Sync) SetOnline(online bool) {
	if online {
		m.Online.Set(1)
		return
	}
	m.Online.Set(0)
}
