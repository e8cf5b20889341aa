// Package stream ties a capture source, a ring buffer and a set of sinks into
// a recording session, and plays recorded files back through a ring.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/realtime-ai/recordkit/pkg/audio"
	"github.com/realtime-ai/recordkit/pkg/bus"
	"github.com/realtime-ai/recordkit/pkg/device"
	"github.com/realtime-ai/recordkit/pkg/metrics"
	"github.com/realtime-ai/recordkit/pkg/sink"
	"github.com/realtime-ai/recordkit/pkg/trace"
)

// ErrInvalidState is returned when Open or Close is called in the wrong status.
var ErrInvalidState = errors.New("invalid stream state")

// SinkFactory builds the sinks of one session. Open calls it with the new
// session ID.
type SinkFactory func(sessionID string) ([]sink.Sink, error)

// Config configures an InputStream.
type Config struct {
	Format       audio.Format
	BufferLength audio.BufferLength
	// RingPeriods is the ring capacity in capture periods
	RingPeriods int
	// MaxDuration closes the session once that much audio was delivered; 0 disables it
	MaxDuration time.Duration

	// NewSinks, when set, supplies fresh sinks to every Open. Without it the
	// sinks given to NewInputStream serve one session only.
	NewSinks SinkFactory

	Bus     bus.Bus
	Metrics *metrics.Metrics
}

// DefaultConfig is 44.1kHz mono, 1024-frame periods, an 8 period ring and a
// two minute limit.
func DefaultConfig() Config {
	return Config{
		Format:       audio.DefaultFormat(),
		BufferLength: audio.BufferVeryLong,
		RingPeriods:  8,
		MaxDuration:  2 * time.Minute,
	}
}

// InputStream runs capture sessions. The source writes into the ring from its
// own context; a pump goroutine drains whole periods into the sinks. Each
// Open starts a session with its own ID.
type InputStream struct {
	id     string
	cfg    Config
	source device.Source
	sinks  []sink.Sink

	static       []sink.Sink
	staticClosed bool

	ring   *audio.RingBuffer
	chunk  []byte
	period time.Duration

	mu         sync.Mutex
	status     Status
	autoClosed bool
	stop       chan struct{}
	pumpDone   chan struct{}
	closed     chan struct{}
	sinkCtx    context.Context
	span       oteltrace.Span
	delivered  int64

	// touched by the pump while open and by shutdown after it stopped
	lastDropped uint64
}

// NewInputStream validates cfg and allocates the ring.
func NewInputStream(cfg Config, src device.Source, sinks ...sink.Sink) (*InputStream, error) {
	if src == nil {
		return nil, errors.New("source is required")
	}
	if cfg.NewSinks != nil && len(sinks) > 0 {
		return nil, errors.New("sinks and Config.NewSinks are mutually exclusive")
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if !cfg.BufferLength.Valid() {
		return nil, fmt.Errorf("invalid buffer length: %d", int(cfg.BufferLength))
	}
	if cfg.RingPeriods == 0 {
		cfg.RingPeriods = 8
	}
	if cfg.RingPeriods < 2 {
		return nil, fmt.Errorf("ring must hold at least 2 periods, got %d", cfg.RingPeriods)
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.Nop{}
	}

	periodBytes := cfg.BufferLength.Bytes(cfg.Format)
	ring, err := audio.NewRingBuffer(periodBytes * cfg.RingPeriods)
	if err != nil {
		return nil, err
	}

	return &InputStream{
		id:     uuid.New().String(),
		cfg:    cfg,
		source: src,
		static: sinks,
		ring:   ring,
		chunk:  make([]byte, periodBytes),
		period: cfg.BufferLength.Duration(cfg.Format.SampleRate),
		status: StatusNotOpen,
	}, nil
}

// ID returns the current or last session ID.
func (s *InputStream) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Ring exposes the session buffer, mainly for inspection.
func (s *InputStream) Ring() *audio.RingBuffer { return s.ring }

func (s *InputStream) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Delivered returns the bytes handed to sinks during the current or last session.
func (s *InputStream) Delivered() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// setStatusLocked is called with s.mu held.
func (s *InputStream) setStatusLocked(to Status) {
	from := s.status
	if from == to {
		return
	}
	s.status = to
	s.cfg.Bus.Publish(bus.Event{
		Type:      bus.EventStatusChanged,
		SessionID: s.id,
		Payload:   bus.StatusPayload{From: from.String(), To: to.String()},
	})
}

// Open starts a session: it builds the sinks, starts the source and then the
// pump. Cancelling ctx closes the session. A closed or failed stream can be
// opened again when Config.NewSinks is set or its sinks were never closed.
func (s *InputStream) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusNotOpen, StatusClosed, StatusError:
	default:
		st := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: open in status %s", ErrInvalidState, st)
	}
	if s.cfg.NewSinks == nil && s.staticClosed {
		s.mu.Unlock()
		return fmt.Errorf("%w: sinks were closed by the previous session", ErrInvalidState)
	}
	if s.status != StatusNotOpen {
		s.id = uuid.New().String()
	}
	id := s.id
	s.setStatusLocked(StatusOpening)
	s.autoClosed = false
	s.delivered = 0
	s.lastDropped = s.ring.Stats().Dropped
	s.stop = make(chan struct{})
	s.pumpDone = make(chan struct{})
	s.closed = make(chan struct{})
	s.mu.Unlock()

	sessCtx, sessSpan := trace.StartSpan(ctx, trace.SpanSession)
	sessSpan.SetAttributes(trace.FormatAttrs(s.cfg.Format, s.cfg.BufferLength)...)
	openCtx, span := trace.StartSpan(sessCtx, trace.SpanSessionOpen)
	defer span.End()

	sinks, owned := s.static, false
	var err error
	if s.cfg.NewSinks != nil {
		sinks, err = s.cfg.NewSinks(id)
		owned = true
		if err != nil {
			err = fmt.Errorf("failed to create sinks: %w", err)
		}
	}
	if err == nil {
		sessSpan.SetAttributes(trace.SessionAttrs(id, fmt.Sprintf("%T", s.source), len(sinks), s.ring.Capacity())...)
		if serr := s.source.Start(openCtx, s.ring); serr != nil {
			err = fmt.Errorf("failed to start source: %w", serr)
			if owned {
				err = closeSinks(err, sinks)
			}
		}
	}
	if err != nil {
		s.ring.Reset()
		trace.RecordError(span, err)
		trace.RecordError(sessSpan, err)
		span.End()
		sessSpan.End()

		s.mu.Lock()
		s.setStatusLocked(StatusError)
		close(s.closed)
		s.mu.Unlock()

		s.cfg.Metrics.RecordSession(metrics.SessionFailed)
		s.cfg.Bus.Publish(bus.Event{Type: bus.EventError, SessionID: id, Payload: err})
		return err
	}

	s.cfg.Metrics.TrackRing(id, s.ring)
	s.cfg.Metrics.RecordSession(metrics.SessionOpened)

	// the pump starts under the lock so a concurrent Close sees it running
	s.mu.Lock()
	s.sinks = sinks
	s.span = sessSpan
	s.sinkCtx = context.WithoutCancel(sessCtx)
	s.setStatusLocked(StatusOpen)
	go s.pump(ctx, s.stop, s.pumpDone)
	s.mu.Unlock()

	log.Printf("[InputStream] %s", trace.LogWithTrace(openCtx, fmt.Sprintf("%s opened: %s, ring %d bytes", id, s.cfg.Format, s.ring.Capacity())))
	return nil
}

func closeSinks(err error, sinks []sink.Sink) error {
	errs := []error{err}
	for _, snk := range sinks {
		errs = append(errs, snk.Close())
	}
	return errors.Join(errs...)
}

// pump drains whole periods every half period until stopped.
func (s *InputStream) pump(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := s.period / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	limit := int64(0)
	if s.cfg.MaxDuration > 0 {
		limit = int64(s.cfg.Format.BytesFor(s.cfg.MaxDuration))
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.closeFromPump("context cancelled")
			return
		case <-ticker.C:
			s.checkOverflow()
			for s.ring.Read(s.chunk, false) > 0 {
				s.deliver(s.chunk, false)
			}
			if limit > 0 && s.Delivered() >= limit {
				s.closeFromPump("max duration reached")
				return
			}
		}
	}
}

func (s *InputStream) checkOverflow() {
	st := s.ring.Stats()
	if st.Dropped <= s.lastDropped {
		return
	}
	dropped := st.Dropped - s.lastDropped
	s.lastDropped = st.Dropped

	s.cfg.Metrics.RecordOverflow()
	trace.AddEvent(s.span, trace.EventRingOverflow,
		attribute.Int64(trace.AttrRingDropped, int64(dropped)),
		attribute.Int64(trace.AttrRingOverflows, int64(st.Overflows)),
	)
	s.cfg.Bus.Publish(bus.Event{
		Type:      bus.EventOverflow,
		SessionID: s.id,
		Payload:   bus.OverflowPayload{Dropped: dropped, TotalDropped: st.Dropped},
	})
}

// deliver hands p to every sink. A failing sink does not stop the others.
func (s *InputStream) deliver(p []byte, drain bool) {
	for _, snk := range s.sinks {
		if err := snk.Consume(s.sinkCtx, p); err != nil {
			log.Printf("[InputStream] %s sink %s failed: %v", s.id, snk.Name(), err)
			s.cfg.Metrics.RecordSinkError(snk.Name())
			s.cfg.Bus.Publish(bus.Event{
				Type:      bus.EventSinkError,
				SessionID: s.id,
				Payload:   bus.SinkErrorPayload{Sink: snk.Name(), Err: err},
			})
		}
	}
	s.cfg.Metrics.RecordChunk(drain)

	s.mu.Lock()
	s.delivered += int64(len(p))
	s.mu.Unlock()
}

// closeFromPump runs shutdown on its own goroutine, since shutdown waits for the pump.
func (s *InputStream) closeFromPump(reason string) {
	s.mu.Lock()
	if s.status != StatusOpen {
		s.mu.Unlock()
		return
	}
	s.autoClosed = true
	s.setStatusLocked(StatusClosing)
	id := s.id
	s.mu.Unlock()

	log.Printf("[InputStream] %s closing: %s", id, reason)
	go func() {
		if err := s.shutdown(); err != nil {
			log.Printf("[InputStream] %s close failed: %v", id, err)
		}
	}()
}

// Close stops the source, drains what is left in the ring into the sinks and
// closes them. After the session closed itself Close waits for that to finish
// and returns nil.
func (s *InputStream) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.autoClosed && s.status != StatusOpen && s.status != StatusOpening {
		closed := s.closed
		s.mu.Unlock()
		select {
		case <-closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.status != StatusOpen {
		st := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: close in status %s", ErrInvalidState, st)
	}
	s.setStatusLocked(StatusClosing)
	s.mu.Unlock()

	return s.shutdown()
}

// shutdown must not touch session fields once the status leaves Closing,
// since Open may already be starting the next session.
func (s *InputStream) shutdown() error {
	s.mu.Lock()
	id, sinks, sessSpan, sessCtx := s.id, s.sinks, s.span, s.sinkCtx
	stop, pumpDone, closed := s.stop, s.pumpDone, s.closed
	s.mu.Unlock()

	closeCtx, span := trace.StartSpan(sessCtx, trace.SpanSessionClose)

	var errs []error
	if err := s.source.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop source: %w", err))
	}

	// the pump may already have returned when it triggered the close
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-pumpDone

	s.checkOverflow()
	for {
		n := s.ring.Read(s.chunk, true)
		if n == 0 {
			break
		}
		s.deliver(s.chunk[:n], true)
	}

	for _, snk := range sinks {
		if err := snk.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sink %s: %w", snk.Name(), err))
			continue
		}
		if f, ok := snk.(interface{ Path() string }); ok {
			s.cfg.Bus.Publish(bus.Event{Type: bus.EventFileComplete, SessionID: id, Payload: f.Path()})
		}
	}

	sessSpan.SetAttributes(trace.RingAttrs(s.ring.Stats())...)
	s.ring.Reset()
	s.cfg.Metrics.UntrackRing(id)

	err := errors.Join(errs...)
	if err != nil {
		trace.RecordError(span, err)
		trace.RecordError(sessSpan, err)
		s.cfg.Metrics.RecordSession(metrics.SessionFailed)
		s.cfg.Bus.Publish(bus.Event{Type: bus.EventError, SessionID: id, Payload: err})
	} else {
		s.cfg.Metrics.RecordSession(metrics.SessionClosed)
	}

	s.mu.Lock()
	delivered := s.delivered
	s.mu.Unlock()
	if err == nil {
		log.Printf("[InputStream] %s", trace.LogWithTrace(closeCtx, fmt.Sprintf("%s closed: delivered %s of audio", id, s.cfg.Format.Duration(int(delivered)))))
	}
	span.End()
	sessSpan.End()

	s.mu.Lock()
	if s.cfg.NewSinks == nil && len(s.static) > 0 {
		s.staticClosed = true
	}
	if err != nil {
		s.setStatusLocked(StatusError)
	} else {
		s.setStatusLocked(StatusClosed)
	}
	close(closed)
	s.mu.Unlock()

	return err
}
