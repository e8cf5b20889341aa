// Package metrics exposes RecordKit session and ring buffer counters to
// Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

// Session outcomes recorded by recordkit_sessions_total.
const (
	SessionOpened = "opened"
	SessionClosed = "closed"
	SessionFailed = "failed"
)

// RingSource is the read side of a ring buffer the collector samples at
// scrape time. *audio.RingBuffer satisfies it.
type RingSource interface {
	Stats() audio.RingStats
	Len() int
	Capacity() int
}

// Metrics holds the RecordKit collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsTotal   *prometheus.CounterVec
	sinkErrors      *prometheus.CounterVec
	chunksDelivered *prometheus.CounterVec
	overflowEvents  prometheus.Counter

	rings *ringCollector
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		sessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_sessions_total",
				Help: "Input stream sessions by outcome",
			},
			[]string{"status"}, // opened, closed, failed
		),
		sinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_sink_errors_total",
				Help: "Chunks a sink failed to consume",
			},
			[]string{"sink"},
		),
		chunksDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_chunks_delivered_total",
				Help: "Chunks drained from the ring and handed to sinks",
			},
			[]string{"mode"}, // full, drain
		),
		overflowEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "recordkit_overflow_events_total",
				Help: "Pump cycles that observed overwritten unread bytes",
			},
		),
		rings: newRingCollector(),
	}

	if err := registry.Register(m.rings); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordSession(status string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordSinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// RecordChunk counts one delivered chunk; drain is true for the short reads
// made while closing.
func (m *Metrics) RecordChunk(drain bool) {
	if m == nil {
		return
	}
	mode := "full"
	if drain {
		mode = "drain"
	}
	m.chunksDelivered.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordOverflow() {
	if m == nil {
		return
	}
	m.overflowEvents.Inc()
}

// TrackRing adds a ring to the scrape set under the session label.
func (m *Metrics) TrackRing(session string, rb RingSource) {
	if m == nil {
		return
	}
	m.rings.add(session, rb)
}

// UntrackRing removes a ring from the scrape set.
func (m *Metrics) UntrackRing(session string) {
	if m == nil {
		return
	}
	m.rings.remove(session)
}

// ringCollector reads RingStats on each scrape so the ring itself never
// touches Prometheus from the capture path.
type ringCollector struct {
	mu    sync.RWMutex
	rings map[string]RingSource

	written   *prometheus.Desc
	dropped   *prometheus.Desc
	read      *prometheus.Desc
	declined  *prometheus.Desc
	overflows *prometheus.Desc
	stored    *prometheus.Desc
	capacity  *prometheus.Desc
}

func newRingCollector() *ringCollector {
	labels := []string{"session"}
	return &ringCollector{
		rings:     make(map[string]RingSource),
		written:   prometheus.NewDesc("recordkit_ring_written_bytes_total", "Bytes retained by ring writes", labels, nil),
		dropped:   prometheus.NewDesc("recordkit_ring_dropped_bytes_total", "Bytes lost to truncation or overwrite", labels, nil),
		read:      prometheus.NewDesc("recordkit_ring_read_bytes_total", "Bytes returned by ring reads", labels, nil),
		declined:  prometheus.NewDesc("recordkit_ring_declined_reads_total", "Reads that returned nothing because the ring was under-filled", labels, nil),
		overflows: prometheus.NewDesc("recordkit_ring_overflows_total", "Writes that overwrote unread bytes", labels, nil),
		stored:    prometheus.NewDesc("recordkit_ring_stored_bytes", "Unread bytes currently in the ring", labels, nil),
		capacity:  prometheus.NewDesc("recordkit_ring_capacity_bytes", "Ring capacity", labels, nil),
	}
}

func (c *ringCollector) add(session string, rb RingSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rings[session] = rb
}

func (c *ringCollector) remove(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rings, session)
}

func (c *ringCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.written
	ch <- c.dropped
	ch <- c.read
	ch <- c.declined
	ch <- c.overflows
	ch <- c.stored
	ch <- c.capacity
}

func (c *ringCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for session, rb := range c.rings {
		st := rb.Stats()
		ch <- prometheus.MustNewConstMetric(c.written, prometheus.CounterValue, float64(st.Written), session)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped), session)
		ch <- prometheus.MustNewConstMetric(c.read, prometheus.CounterValue, float64(st.Read), session)
		ch <- prometheus.MustNewConstMetric(c.declined, prometheus.CounterValue, float64(st.Declined), session)
		ch <- prometheus.MustNewConstMetric(c.overflows, prometheus.CounterValue, float64(st.Overflows), session)
		ch <- prometheus.MustNewConstMetric(c.stored, prometheus.GaugeValue, float64(rb.Len()), session)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(rb.Capacity()), session)
	}
}
