package trace

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

// Span names. Open and close are children of the session span.
const (
	SpanSession      = "recordkit.session"
	SpanSessionOpen  = "recordkit.session.open"
	SpanSessionClose = "recordkit.session.close"
	SpanPlay         = "recordkit.play"
)

// Attribute keys
const (
	AttrSessionID  = "session.id"
	AttrSourceType = "session.source"
	AttrSinkCount  = "session.sinks"

	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioChannels   = "audio.channels"
	AttrAudioBitDepth   = "audio.bit_depth"
	AttrAudioPeriod     = "audio.period_frames"

	AttrRingCapacity  = "ring.capacity"
	AttrRingWritten   = "ring.written_bytes"
	AttrRingDropped   = "ring.dropped_bytes"
	AttrRingRead      = "ring.read_bytes"
	AttrRingOverflows = "ring.overflows"

	AttrFilePath = "file.path"
)

// EventRingOverflow is added to the session span each time the ring drops data.
const EventRingOverflow = "ring.overflow"

// SessionAttrs describes a capture session at open time.
func SessionAttrs(sessionID, source string, sinks, capacity int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrSourceType, source),
		attribute.Int(AttrSinkCount, sinks),
		attribute.Int(AttrRingCapacity, capacity),
	}
}

// FormatAttrs describes the PCM format and capture period.
func FormatAttrs(f audio.Format, period audio.BufferLength) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrAudioSampleRate, f.SampleRate),
		attribute.Int(AttrAudioChannels, f.Channels),
		attribute.Int(AttrAudioBitDepth, f.BitDepth),
		attribute.Int(AttrAudioPeriod, period.Frames()),
	}
}

// RingAttrs snapshots ring counters, usually when a session closes.
func RingAttrs(st audio.RingStats) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrRingWritten, int64(st.Written)),
		attribute.Int64(AttrRingDropped, int64(st.Dropped)),
		attribute.Int64(AttrRingRead, int64(st.Read)),
		attribute.Int64(AttrRingOverflows, int64(st.Overflows)),
	}
}
