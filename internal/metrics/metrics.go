package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeskMetrics exposes counters and gauges for the sync bridge and the registration desk.
// A nil *DeskMetrics is valid and records nothing.
type DeskMetrics struct {
	snapshotsTotal     *prometheus.CounterVec
	syncErrorsTotal    *prometheus.CounterVec
	mirrorSize         *prometheus.GaugeVec
	registrationsTotal *prometheus.CounterVec
	writeLatency       *prometheus.HistogramVec
}

func NewDeskMetrics(reg prometheus.Registerer) *DeskMetrics {
	m := &DeskMetrics{
		snapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "sync",
			Name:      "snapshots_total",
			Help:      "Full collection snapshots received from the store",
		}, []string{"collection"}),
		syncErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Subscription errors reported by the store",
		}, []string{"collection"}),
		mirrorSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "opd",
			Subsystem: "sync",
			Name:      "mirror_documents",
			Help:      "Documents currently held in each in-memory mirror",
		}, []string{"collection"}),
		registrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "desk",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome",
		}, []string{"outcome"}),
		writeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opd",
			Subsystem: "desk",
			Name:      "write_latency_seconds",
			Help:      "Latency of store writes made by the desk",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.snapshotsTotal, m.syncErrorsTotal, m.mirrorSize, m.registrationsTotal, m.writeLatency)
	return m
}

func (m *DeskMetrics) ObserveSnapshot(collection string, size int) {
	if m == nil {
		return
	}
	m.snapshotsTotal.WithLabelValues(collection).Inc()
	m.mirrorSize.WithLabelValues(collection).Set(float64(size))
}

func (m *DeskMetrics) ObserveSyncError(collection string) {
	if m == nil {
		return
	}
	m.syncErrorsTotal.WithLabelValues(collection).Inc()
}

// ObserveRegistration counts one attempt; outcome is e.g. "ok", "invalid", "busy", "failed".
func (m *DeskMetrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *DeskMetrics) ObserveWrite(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.writeLatency.WithLabelValues(operation).Observe(seconds)
}
