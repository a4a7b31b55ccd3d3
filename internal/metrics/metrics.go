// Package metrics exposes spool's Prometheus collectors.
//
// A single Metrics value implements the hook interfaces of the Pebble
// wrapper, the persistence engine and the channel service, so the runtime
// can hand the same value to all three.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spool"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	StorageWrite  prometheus.Histogram
	StorageRead   prometheus.Histogram
	StorageCommit prometheus.Histogram
	StorageBytes  *prometheus.CounterVec
	Puts          *prometheus.CounterVec
	Leases        *prometheus.CounterVec
	LeasedRecords *prometheus.CounterVec
	Confirmed     *prometheus.CounterVec
	CorruptPurged *prometheus.CounterVec
	Faults        *prometheus.CounterVec
	Sends         *prometheus.CounterVec
	SentRecords   *prometheus.CounterVec
	FilteredTotal *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		StorageWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "write_duration_seconds",
			Help:      "Latency of single-key storage writes",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		StorageRead: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "read_duration_seconds",
			Help:      "Latency of storage point reads",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		StorageCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "batch_commit_duration_seconds",
			Help:      "Latency of storage batch commits",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		StorageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "bytes_total",
			Help:      "Bytes moved through the storage layer",
		}, []string{"direction"}),
		Puts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "puts_total",
			Help:      "Records offered to the engine",
		}, []string{"group", "status"}),
		Leases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "leases_total",
			Help:      "Leases issued",
		}, []string{"group"}),
		LeasedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "leased_records_total",
			Help:      "Records handed out in leases",
		}, []string{"group"}),
		Confirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "confirmed_records_total",
			Help:      "Records deleted by confirmed leases",
		}, []string{"group"}),
		CorruptPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "corrupt_rows_purged_total",
			Help:      "Rows deleted because they failed to decode",
		}, []string{"group"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "storage_faults_total",
			Help:      "Storage faults by operation",
		}, []string{"op"}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "sends_total",
			Help:      "Batch sends by outcome",
		}, []string{"group", "status"}),
		SentRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "sent_records_total",
			Help:      "Records delivered upstream",
		}, []string{"group"}),
		FilteredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "filtered_total",
			Help:      "Records rejected by the admission filter",
		}, []string{"group"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StorageWrite, m.StorageRead, m.StorageCommit, m.StorageBytes,
		m.Puts, m.Leases, m.LeasedRecords, m.Confirmed, m.CorruptPurged, m.Faults,
		m.Sends, m.SentRecords, m.FilteredTotal,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Storage hooks.

func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.StorageWrite.Observe(elapsed.Seconds())
	m.StorageBytes.WithLabelValues("write").Add(float64(bytes))
}

func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.StorageRead.Observe(elapsed.Seconds())
	m.StorageBytes.WithLabelValues("read").Add(float64(bytes))
}

func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	m.StorageCommit.Observe(elapsed.Seconds())
	m.StorageBytes.WithLabelValues("write").Add(float64(bytes))
}

// Engine hooks.

func (m *Metrics) RecordPut(group string, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Puts.WithLabelValues(group, status).Inc()
}

func (m *Metrics) RecordLease(group string, records int) {
	m.Leases.WithLabelValues(group).Inc()
	m.LeasedRecords.WithLabelValues(group).Add(float64(records))
}

func (m *Metrics) RecordConfirm(group string, records int) {
	m.Confirmed.WithLabelValues(group).Add(float64(records))
}

func (m *Metrics) RecordCorrupt(group string, rows int) {
	m.CorruptPurged.WithLabelValues(group).Add(float64(rows))
}

func (m *Metrics) RecordFault(op string) {
	m.Faults.WithLabelValues(op).Inc()
}

// Channel hooks.

func (m *Metrics) RecordSend(group string, records int, err error) {
	if err != nil {
		m.Sends.WithLabelValues(group, "failed").Inc()
		return
	}
	m.Sends.WithLabelValues(group, "ok").Inc()
	m.SentRecords.WithLabelValues(group).Add(float64(records))
}

func (m *Metrics) RecordFiltered(group string) {
	m.FilteredTotal.WithLabelValues(group).Inc()
}
