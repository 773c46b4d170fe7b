// Package metrics wires the controller's operational counters into
// Prometheus, the way the HCI/radio register programming this core sits on
// top of would normally be observed in a host process. HCI parsing and
// register programming are out of scope, but metrics are ambient
// observability, carried the same way logging and config are.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every gauge/counter the controller emits. All of it is
// optional: NewNoop returns a Metrics whose collectors are registered
// nowhere, so observations go unexported and the core never has to branch
// on whether a registry was supplied.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	SupervisionExpiry *prometheus.CounterVec
	CRCErrors         *prometheus.CounterVec
	ProceduresStarted *prometheus.CounterVec
	ProceduresDone    *prometheus.CounterVec
	ProceduresRejected *prometheus.CounterVec
	RSSIReported      prometheus.Histogram
}

// New registers a full set of metrics on reg under the "blell_" namespace.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blell",
			Name:      "active_connections",
			Help:      "Number of Link Layer connections currently established.",
		}),
		SupervisionExpiry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blell",
			Name:      "supervision_timeouts_total",
			Help:      "Connections terminated by supervision timeout, by role.",
		}, []string{"role"}),
		CRCErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blell",
			Name:      "crc_errors_total",
			Help:      "CRC errors observed on received packets, by handle.",
		}, []string{"handle"}),
		ProceduresStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blell",
			Name:      "llcp_procedures_started_total",
			Help:      "LLCP procedures started, by procedure type.",
		}, []string{"proc"}),
		ProceduresDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blell",
			Name:      "llcp_procedures_completed_total",
			Help:      "LLCP procedures completed successfully, by procedure type.",
		}, []string{"proc"}),
		ProceduresRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blell",
			Name:      "llcp_procedures_rejected_total",
			Help:      "LLCP procedures rejected by the peer, by procedure type.",
		}, []string{"proc"}),
		RSSIReported: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blell",
			Name:      "rssi_dbm",
			Help:      "Reported RSSI samples in dBm.",
			Buckets:   []float64{-90, -80, -70, -60, -50, -40, -30},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ActiveConnections, m.SupervisionExpiry, m.CRCErrors,
			m.ProceduresStarted, m.ProceduresDone, m.ProceduresRejected, m.RSSIReported)
	}
	return m
}

// NewNoop returns a Metrics whose every child collector is still valid to
// call but registered nowhere, for callers that don't want a Prometheus
// dependency wired into their process.
func NewNoop() *Metrics {
	return New(nil)
}
