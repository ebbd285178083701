// Package metrics holds the Prometheus collectors shared by the session
// components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	PresenceWrites     *prometheus.CounterVec
	DiscoveryRefreshes *prometheus.CounterVec
	Scans              *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PresenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reallink",
			Name:      "presence_writes_total",
			Help:      "Presence writes by status and result.",
		}, []string{"status", "result"}),
		DiscoveryRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reallink",
			Name:      "discovery_refreshes_total",
			Help:      "Discovery refreshes by scope and result.",
		}, []string{"scope", "result"}),
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reallink",
			Name:      "discovery_scans_total",
			Help:      "Device scans by method and result.",
		}, []string{"method", "result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reallink",
			Name:      "active_sessions",
			Help:      "Sessions with a running presence tracker.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.PresenceWrites, m.DiscoveryRefreshes, m.Scans, m.ActiveSessions)
	}
	return m
}

// Nop returns unregistered collectors for tests and tools.
func Nop() *Metrics {
	return New(nil)
}

func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
