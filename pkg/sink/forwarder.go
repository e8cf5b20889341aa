package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hraban/opus"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

const (
	forwarderMaxRetryAttempts  = 3
	forwarderInitialRetryDelay = 500 * time.Millisecond
	forwarderMaxRetryDelay     = 2 * time.Second
	forwarderConnectionTimeout = 10 * time.Second
	forwarderWriteTimeout      = 5 * time.Second

	// opus frames are 20ms
	opusFrameDuration = 20 * time.Millisecond
	// largest possible opus packet
	opusMaxPacket = 1275
)

// ErrUnsupportedEncoding is returned for an unknown encoding or a format the
// encoding cannot carry.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// Encoding selects the payload of forwarded messages.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm16"
	EncodingMuLaw Encoding = "mulaw"
	EncodingOpus  Encoding = "opus"
)

// ParseEncoding accepts pcm16, mulaw and opus, case-insensitively.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case EncodingPCM16, EncodingMuLaw, EncodingOpus:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
	}
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	URL      string
	Format   audio.Format
	Encoding Encoding
	// Header is sent with the websocket handshake
	Header http.Header
}

// Forwarder streams chunks to a websocket endpoint as binary messages.
type Forwarder struct {
	cfg  ForwarderConfig
	conn *websocket.Conn
	enc  chunkEncoder

	mu       sync.Mutex
	closed   bool
	messages int64
}

var _ Sink = (*Forwarder)(nil)

// NewForwarder builds the encoder and dials cfg.URL, retrying with backoff.
func NewForwarder(ctx context.Context, cfg ForwarderConfig) (*Forwarder, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingPCM16
	}

	enc, err := newChunkEncoder(cfg.Encoding, cfg.Format)
	if err != nil {
		return nil, err
	}

	conn, err := dialWithRetry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[Forwarder] connected to %s (%s)", cfg.URL, cfg.Encoding)

	return &Forwarder{cfg: cfg, conn: conn, enc: enc}, nil
}

func dialWithRetry(ctx context.Context, cfg ForwarderConfig) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: forwarderConnectionTimeout,
	}

	var lastErr error
	retryDelay := forwarderInitialRetryDelay

	for attempt := 0; attempt < forwarderMaxRetryAttempts; attempt++ {
		conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("[Forwarder] Connection attempt %d/%d failed: %v", attempt+1, forwarderMaxRetryAttempts, err)

		if attempt < forwarderMaxRetryAttempts-1 {
			select {
			case <-time.After(retryDelay):
				retryDelay *= 2
				if retryDelay > forwarderMaxRetryDelay {
					retryDelay = forwarderMaxRetryDelay
				}
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.URL, forwarderMaxRetryAttempts, lastErr)
}

func (f *Forwarder) Name() string { return "forward:" + f.cfg.URL }

// Messages returns the number of binary messages sent.
func (f *Forwarder) Messages() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages
}

// Consume encodes p and sends the result. With opus, bytes short of a full
// frame are held until the next call or Close.
func (f *Forwarder) Consume(ctx context.Context, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	return f.enc.encode(p, func(msg []byte) error { return f.send(ctx, msg) })
}

// send is called with f.mu held.
func (f *Forwarder) send(ctx context.Context, msg []byte) error {
	deadline := time.Now().Add(forwarderWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := f.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := f.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return fmt.Errorf("failed to send to %s: %w", f.cfg.URL, err)
	}
	f.messages++
	return nil
}

// Close flushes any held frame, sends a close frame and closes the connection.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	flushErr := f.enc.flush(func(msg []byte) error { return f.send(context.Background(), msg) })

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := f.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		log.Printf("[Forwarder] Failed to send close frame: %v", err)
	}

	return errors.Join(flushErr, f.enc.close(), f.conn.Close())
}

type chunkEncoder interface {
	encode(p []byte, emit func([]byte) error) error
	flush(emit func([]byte) error) error
	close() error
}

func newChunkEncoder(e Encoding, format audio.Format) (chunkEncoder, error) {
	switch e {
	case EncodingPCM16:
		return pcmEncoder{}, nil
	case EncodingMuLaw:
		if format.Channels != 1 {
			return nil, fmt.Errorf("%w: mulaw requires mono, got %d channels", ErrUnsupportedEncoding, format.Channels)
		}
		return &mulawEncoder{}, nil
	case EncodingOpus:
		return newOpusEncoder(format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, string(e))
	}
}

type pcmEncoder struct{}

func (pcmEncoder) encode(p []byte, emit func([]byte) error) error {
	if len(p) == 0 {
		return nil
	}
	return emit(p)
}

func (pcmEncoder) flush(func([]byte) error) error { return nil }
func (pcmEncoder) close() error                   { return nil }

type mulawEncoder struct {
	buf []byte
}

func (m *mulawEncoder) encode(p []byte, emit func([]byte) error) error {
	n := len(p) / 2
	if n == 0 {
		return nil
	}
	if cap(m.buf) < n {
		m.buf = make([]byte, n)
	}
	m.buf = m.buf[:n]
	audio.EncodeMuLaw(m.buf, p)
	return emit(m.buf)
}

func (m *mulawEncoder) flush(func([]byte) error) error { return nil }
func (m *mulawEncoder) close() error                   { return nil }

// opusEncoder re-frames arbitrary chunks into fixed 20ms frames through a
// ring buffer. A normal-mode read only succeeds once a whole frame is queued.
type opusEncoder struct {
	enc     *opus.Encoder
	pending *audio.RingBuffer
	frame   []byte
	pcm     []int16
	packet  []byte
}

func newOpusEncoder(format audio.Format) (*opusEncoder, error) {
	switch format.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("%w: opus does not support %d Hz", ErrUnsupportedEncoding, format.SampleRate)
	}
	if format.Channels > 2 {
		return nil, fmt.Errorf("%w: opus supports at most 2 channels", ErrUnsupportedEncoding)
	}

	enc, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	frameBytes := format.BytesFor(opusFrameDuration)
	pending, err := audio.NewRingBuffer(frameBytes * 4)
	if err != nil {
		return nil, err
	}

	return &opusEncoder{
		enc:     enc,
		pending: pending,
		frame:   make([]byte, frameBytes),
		pcm:     make([]int16, frameBytes/2),
		packet:  make([]byte, opusMaxPacket),
	}, nil
}

func (o *opusEncoder) encode(p []byte, emit func([]byte) error) error {
	for len(p) > 0 {
		n := o.pending.Free()
		if n > len(p) {
			n = len(p)
		}
		o.pending.Write(p[:n])
		p = p[n:]

		for o.pending.Read(o.frame, false) == len(o.frame) {
			if err := o.encodeFrame(emit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *opusEncoder) encodeFrame(emit func([]byte) error) error {
	audio.BytesToInt16(o.pcm, o.frame)
	n, err := o.enc.Encode(o.pcm, o.packet)
	if err != nil {
		return fmt.Errorf("opus encode failed: %w", err)
	}
	return emit(o.packet[:n])
}

// flush pads the queued tail with silence and sends it as a last frame.
func (o *opusEncoder) flush(emit func([]byte) error) error {
	n := o.pending.Read(o.frame, true)
	if n == 0 {
		return nil
	}
	clear(o.frame[n:])
	return o.encodeFrame(emit)
}

func (o *opusEncoder) close() error {
	o.pending.Reset()
	return nil
}
