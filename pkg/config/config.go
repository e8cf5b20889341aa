// Package config reads RecordKit settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/realtime-ai/recordkit/pkg/audio"
	"github.com/realtime-ai/recordkit/pkg/sink"
	"github.com/realtime-ai/recordkit/pkg/trace"
)

// Config is the resolved application configuration.
type Config struct {
	Format       audio.Format
	BufferLength audio.BufferLength
	RingPeriods  int
	MaxDuration  time.Duration

	OutputPath      string
	ForwardURL      string
	ForwardEncoding sink.Encoding

	// MetricsAddr serves /metrics when non-empty, e.g. ":9090"
	MetricsAddr string

	Trace trace.Config
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Format:          audio.DefaultFormat(),
		BufferLength:    audio.BufferVeryLong,
		RingPeriods:     8,
		MaxDuration:     2 * time.Minute,
		OutputPath:      "recordings/recordkit.wav",
		ForwardEncoding: sink.EncodingPCM16,
		Trace:           trace.DefaultConfig(),
	}
}

// Load reads the given .env files (".env" if none) and then the environment.
// Missing files are ignored; variables already set in the process win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment.
func FromEnv() (Config, error) {
	cfg := Default()
	var errs []error

	cfg.Format.SampleRate = getEnvInt("RECORDKIT_SAMPLE_RATE", cfg.Format.SampleRate, &errs)
	cfg.Format.Channels = getEnvInt("RECORDKIT_CHANNELS", cfg.Format.Channels, &errs)
	cfg.RingPeriods = getEnvInt("RECORDKIT_RING_PERIODS", cfg.RingPeriods, &errs)
	cfg.MaxDuration = getEnvDuration("RECORDKIT_MAX_DURATION", cfg.MaxDuration, &errs)

	if v := os.Getenv("RECORDKIT_BUFFER_LENGTH"); v != "" {
		bl, err := audio.ParseBufferLength(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECORDKIT_BUFFER_LENGTH: %w", err))
		} else {
			cfg.BufferLength = bl
		}
	}

	cfg.OutputPath = getEnv("RECORDKIT_OUTPUT", cfg.OutputPath)
	cfg.ForwardURL = getEnv("RECORDKIT_FORWARD_URL", cfg.ForwardURL)
	if v := os.Getenv("RECORDKIT_FORWARD_ENCODING"); v != "" {
		enc, err := sink.ParseEncoding(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECORDKIT_FORWARD_ENCODING: %w", err))
		} else {
			cfg.ForwardEncoding = enc
		}
	}
	cfg.MetricsAddr = getEnv("RECORDKIT_METRICS_ADDR", cfg.MetricsAddr)

	cfg.Trace.Environment = getEnv("ENVIRONMENT", cfg.Trace.Environment)
	cfg.Trace.ExporterType = getEnv("TRACE_EXPORTER", cfg.Trace.ExporterType)
	cfg.Trace.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Trace.OTLPEndpoint)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if !c.BufferLength.Valid() {
		return fmt.Errorf("invalid buffer length: %d", int(c.BufferLength))
	}
	if c.RingPeriods < 2 {
		return fmt.Errorf("ring periods must be at least 2, got %d", c.RingPeriods)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %s", c.MaxDuration)
	}
	switch c.Trace.ExporterType {
	case trace.ExporterNone, trace.ExporterStdout, trace.ExporterOTLP:
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Trace.ExporterType)
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
