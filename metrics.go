package stripedmap

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a prometheus.Collector exposing a Map's live bookkeeping
// counters, built the way the teacher's monitor package wires ad-hoc
// collectors around internal counters rather than using prometheus's
// struct-tag registration. Attach one via Config.Metrics before calling
// New; the Map fills in its own reference during construction so Collect
// can walk live segment state without taking any segment lock beyond the
// retry-snapshot reads Size/ContainsValue already perform.
type Metrics struct {
	namespace string
	subsystem string

	liveEntries   *prometheus.Desc
	resizeTotal   *prometheus.Desc
	drainTotal    *prometheus.Desc
	reclaimTotal  *prometheus.Desc
	segmentCount  *prometheus.Desc

	snapshot func() []segmentSnapshot
}

type segmentSnapshot struct {
	index     int
	count     int32
	capacity  int
	resizes   int64
	drains    int64
	reclaimed int64
}

// NewMetrics builds a Metrics collector namespaced the way the teacher's
// exporters are (namespace_subsystem_name); both may be empty.
func NewMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{namespace: namespace, subsystem: subsystem}
	m.liveEntries = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "live_entries"),
		"Number of live entries in a segment.",
		[]string{"segment"}, nil,
	)
	m.resizeTotal = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "resize_total"),
		"Cumulative number of expansions performed by a segment.",
		[]string{"segment"}, nil,
	)
	m.drainTotal = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "drain_total"),
		"Cumulative number of non-empty reclamation drains performed by a segment.",
		[]string{"segment"}, nil,
	)
	m.reclaimTotal = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "reclaimed_total"),
		"Cumulative number of entries physically removed due to reclamation.",
		[]string{"segment"}, nil,
	)
	m.segmentCount = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "segments"),
		"Number of segments the map is striped into.",
		nil, nil,
	)
	return m
}

// attach wires the collector to a live map; called once from New.
func (m *Metrics) attach(snapshot func() []segmentSnapshot) {
	m.snapshot = snapshot
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.liveEntries
	ch <- m.resizeTotal
	ch <- m.drainTotal
	ch <- m.reclaimTotal
	ch <- m.segmentCount
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	if m.snapshot == nil {
		return
	}
	segs := m.snapshot()
	ch <- prometheus.MustNewConstMetric(m.segmentCount, prometheus.GaugeValue, float64(len(segs)))
	for _, s := range segs {
		label := strconv.Itoa(s.index)
		ch <- prometheus.MustNewConstMetric(m.liveEntries, prometheus.GaugeValue, float64(s.count), label)
		ch <- prometheus.MustNewConstMetric(m.resizeTotal, prometheus.CounterValue, float64(s.resizes), label)
		ch <- prometheus.MustNewConstMetric(m.drainTotal, prometheus.CounterValue, float64(s.drains), label)
		ch <- prometheus.MustNewConstMetric(m.reclaimTotal, prometheus.CounterValue, float64(s.reclaimed), label)
	}
}
