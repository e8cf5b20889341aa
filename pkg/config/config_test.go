package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/recordkit/pkg/audio"
	"github.com/realtime-ai/recordkit/pkg/sink"
)

var envKeys = []string{
	"RECORDKIT_SAMPLE_RATE", "RECORDKIT_CHANNELS", "RECORDKIT_BUFFER_LENGTH",
	"RECORDKIT_RING_PERIODS", "RECORDKIT_MAX_DURATION", "RECORDKIT_OUTPUT",
	"RECORDKIT_FORWARD_URL", "RECORDKIT_FORWARD_ENCODING", "RECORDKIT_METRICS_ADDR",
	"TRACE_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT", "ENVIRONMENT",
}

// clearEnv blanks every variable the loader reads; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 44100, cfg.Format.SampleRate)
	assert.Equal(t, audio.BufferVeryLong, cfg.BufferLength)
	assert.Equal(t, 8, cfg.RingPeriods)
	assert.Equal(t, 2*time.Minute, cfg.MaxDuration)
	assert.Equal(t, "none", cfg.Trace.ExporterType)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECORDKIT_SAMPLE_RATE", "16000")
	t.Setenv("RECORDKIT_CHANNELS", "2")
	t.Setenv("RECORDKIT_BUFFER_LENGTH", "Short")
	t.Setenv("RECORDKIT_RING_PERIODS", "4")
	t.Setenv("RECORDKIT_MAX_DURATION", "30s")
	t.Setenv("RECORDKIT_OUTPUT", "/tmp/x.wav")
	t.Setenv("RECORDKIT_FORWARD_URL", "ws://localhost:9000/audio")
	t.Setenv("RECORDKIT_FORWARD_ENCODING", "opus")
	t.Setenv("RECORDKIT_METRICS_ADDR", ":9090")
	t.Setenv("TRACE_EXPORTER", "stdout")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, audio.Format{SampleRate: 16000, Channels: 2, BitDepth: 16}, cfg.Format)
	assert.Equal(t, audio.BufferShort, cfg.BufferLength)
	assert.Equal(t, 4, cfg.RingPeriods)
	assert.Equal(t, 30*time.Second, cfg.MaxDuration)
	assert.Equal(t, "/tmp/x.wav", cfg.OutputPath)
	assert.Equal(t, "ws://localhost:9000/audio", cfg.ForwardURL)
	assert.Equal(t, sink.EncodingOpus, cfg.ForwardEncoding)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "stdout", cfg.Trace.ExporterType)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric rate", "RECORDKIT_SAMPLE_RATE", "fast"},
		{"zero channels", "RECORDKIT_CHANNELS", "0"},
		{"unknown buffer length", "RECORDKIT_BUFFER_LENGTH", "huge"},
		{"single period ring", "RECORDKIT_RING_PERIODS", "1"},
		{"bad duration", "RECORDKIT_MAX_DURATION", "forever"},
		{"negative duration", "RECORDKIT_MAX_DURATION", "-1s"},
		{"unknown encoding", "RECORDKIT_FORWARD_ENCODING", "flac"},
		{"unknown exporter", "TRACE_EXPORTER", "zipkin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("RECORDKIT_OUTPUT")
	os.Unsetenv("RECORDKIT_RING_PERIODS")
	t.Setenv("RECORDKIT_CHANNELS", "2")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "RECORDKIT_OUTPUT=from-dotenv.wav\nRECORDKIT_CHANNELS=1\nRECORDKIT_RING_PERIODS=16\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("RECORDKIT_OUTPUT")
		os.Unsetenv("RECORDKIT_RING_PERIODS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.wav", cfg.OutputPath)
	assert.Equal(t, 16, cfg.RingPeriods)
	assert.Equal(t, 2, cfg.Format.Channels, "process environment wins over .env")
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
