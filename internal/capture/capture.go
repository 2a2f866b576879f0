package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable is returned by Frame when the backend cannot produce an
// encoded frame: end of stream, a transient device error, or a released
// source. Callers must treat it as recoverable, not fatal.
var ErrUnavailable = errors.New("capture: frame unavailable")

// OpenError reports that a camera source could not be opened. It is always
// surfaced synchronously from Open, never from Frame.
type OpenError struct {
	Source string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("capture: open %q: %v", e.Source, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Frame is one encoded JPEG image read from the source.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the Source
	Seq uint64
	// Timestamp is when the frame was read and encoded
	Timestamp time.Time
	// Data contains the encoded JPEG bytes
	Data []byte
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// SourceStats contains current source statistics
type SourceStats struct {
	// Frames is the total number of frames successfully produced
	Frames uint64
	// Failures is the total number of failed reads
	Failures uint64
	// LastFrameAgeMS is the time since the last successful frame in milliseconds
	LastFrameAgeMS int64
	// UptimeS is the time since Open in seconds
	UptimeS float64
	// Released indicates the underlying handle has been released
	Released bool
	// SourceID identifies the configured camera source
	SourceID string
}

// backend is the device half of a Source: one blocking read producing
// encoded JPEG bytes, and a close. Implementations are not safe for
// concurrent use; Source serializes all access.
type backend interface {
	read() ([]byte, error)
	close() error
}

// Source owns exactly one open capture backend and serializes every
// operation on it. Frame and Release are mutually exclusive with each
// other and with themselves.
type Source struct {
	mu      sync.Mutex
	backend backend

	sourceID string
	released bool

	seq         uint64
	frames      uint64
	failures    uint64
	opened      time.Time
	lastFrameAt time.Time
}

// CameraConfig describes the camera source to open.
type CameraConfig struct {
	// Source is a V4L2 device index ("0", "1", ...) or a stream URL
	Source string `yaml:"source"`
	// Width is the requested capture width in pixels
	Width int `yaml:"width"`
	// Height is the requested capture height in pixels
	Height int `yaml:"height"`
}

// Open opens the configured camera source. It fails fast: any error from
// the capture library is reported here, wrapped in *OpenError, and no
// half-open Source is ever returned.
func Open(cfg CameraConfig) (*Source, error) {
	if cfg.Source == "" {
		return nil, &OpenError{Source: cfg.Source, Err: errors.New("source identifier is required")}
	}

	b, err := openGoCV(cfg)
	if err != nil {
		return nil, &OpenError{Source: cfg.Source, Err: err}
	}

	slog.Info("capture: source opened",
		"source", cfg.Source,
		"width", cfg.Width,
		"height", cfg.Height,
	)

	return newSource(b, cfg.Source), nil
}

// newSource wires a backend into a Source. Split from Open so tests can
// inject fake backends.
func newSource(b backend, sourceID string) *Source {
	return &Source{
		backend:  b,
		sourceID: sourceID,
		opened:   time.Now(),
	}
}

// Frame performs one exclusive blocking read+encode cycle and returns the
// encoded frame. Any backend failure, and every call after Release, yields
// an error wrapping ErrUnavailable; no backend error escapes unwrapped.
func (s *Source) Frame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return Frame{}, fmt.Errorf("%w: source released", ErrUnavailable)
	}

	data, err := s.backend.read()
	if err != nil {
		s.failures++
		return Frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.seq++
	s.frames++
	s.lastFrameAt = time.Now()

	return Frame{
		Seq:       s.seq,
		Timestamp: s.lastFrameAt,
		Data:      data,
		TraceID:   uuid.New().String(),
	}, nil
}

// Release closes the underlying backend and prevents further reads.
// Idempotent - safe to call multiple times.
func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	err := s.backend.close()
	if err != nil {
		slog.Warn("capture: backend close failed", "source", s.sourceID, "error", err)
	}

	slog.Info("capture: source released",
		"source", s.sourceID,
		"frames", s.frames,
		"failures", s.failures,
		"uptime", time.Since(s.opened),
	)

	return nil
}

// Stats returns current source statistics. Thread-safe.
func (s *Source) Stats() SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastAge int64
	if !s.lastFrameAt.IsZero() {
		lastAge = time.Since(s.lastFrameAt).Milliseconds()
	}

	return SourceStats{
		Frames:         s.frames,
		Failures:       s.failures,
		LastFrameAgeMS: lastAge,
		UptimeS:        time.Since(s.opened).Seconds(),
		Released:       s.released,
		SourceID:       s.sourceID,
	}
}
