package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

func TestSessionAndSinkCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)
	assert.Same(t, registry, m.Registry())

	m.RecordSession(SessionOpened)
	m.RecordSession(SessionOpened)
	m.RecordSession(SessionClosed)
	m.RecordSinkError("wav:out.wav")
	m.RecordChunk(false)
	m.RecordChunk(false)
	m.RecordChunk(true)
	m.RecordOverflow()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.sessionsTotal.WithLabelValues(SessionOpened)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionsTotal.WithLabelValues(SessionClosed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sinkErrors.WithLabelValues("wav:out.wav")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.chunksDelivered.WithLabelValues("full")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.chunksDelivered.WithLabelValues("drain")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.overflowEvents))
}

func TestRingCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)

	rb, err := audio.NewRingBuffer(4)
	require.NoError(t, err)
	rb.Write([]byte{1, 2, 3, 4, 5, 6}) // 2 dropped by truncation
	rb.Write([]byte{7})                // 1 overwritten

	m.TrackRing("s1", rb)

	expected := `
# HELP recordkit_ring_capacity_bytes Ring capacity
# TYPE recordkit_ring_capacity_bytes gauge
recordkit_ring_capacity_bytes{session="s1"} 4
# HELP recordkit_ring_dropped_bytes_total Bytes lost to truncation or overwrite
# TYPE recordkit_ring_dropped_bytes_total counter
recordkit_ring_dropped_bytes_total{session="s1"} 3
# HELP recordkit_ring_stored_bytes Unread bytes currently in the ring
# TYPE recordkit_ring_stored_bytes gauge
recordkit_ring_stored_bytes{session="s1"} 4
`
	err = testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"recordkit_ring_capacity_bytes", "recordkit_ring_dropped_bytes_total", "recordkit_ring_stored_bytes")
	assert.NoError(t, err)

	m.UntrackRing("s1")
	count, err := testutil.GatherAndCount(registry, "recordkit_ring_capacity_bytes")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordSession(SessionFailed)
	m.RecordSinkError("x")
	m.RecordChunk(true)
	m.RecordOverflow()
	m.TrackRing("s", nil)
	m.UntrackRing("s")
	assert.Nil(t, m.Registry())
}
