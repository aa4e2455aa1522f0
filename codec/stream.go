package codec

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrStreamClosed is returned by Read after Close.
var ErrStreamClosed = errors.New("codec: stream closed")

// Stream is a finite, single-chunk byte stream over one payload. It is not
// restartable; every EncodeToStream call yields a fresh Stream.
type Stream struct {
	id  string
	log *slog.Logger

	mu       sync.Mutex
	r        *strings.Reader
	closed   bool
	canceled bool
	onCancel func(id string, reason error)
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithStreamLogger sets the logger used for cancellation diagnostics.
func WithStreamLogger(l *slog.Logger) StreamOption {
	return func(s *Stream) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCancelHook registers fn to observe Cancel. It runs after the log line.
func WithCancelHook(fn func(id string, reason error)) StreamOption {
	return func(s *Stream) { s.onCancel = fn }
}

// EncodeToStream frames payload as a UTF-8 byte stream holding a single
// chunk. Invalid UTF-8 sequences are replaced with U+FFFD.
func EncodeToStream(payload string, opts ...StreamOption) *Stream {
	s := &Stream{
		id:  uuid.NewString(),
		log: slog.Default(),
		r:   strings.NewReader(strings.ToValidUTF8(payload, "\uFFFD")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies the stream in logs.
func (s *Stream) ID() string { return s.id }

// Read implements io.Reader. The chunk stays readable after Cancel.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStreamClosed
	}
	return s.r.Read(p)
}

// Len reports the number of unread bytes.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Len()
}

// Close releases the stream. It never fails.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Cancel records that the consumer gave up on the stream and logs reason.
// It does not fail, does not discard the enqueued chunk and has no effect
// on whatever computation is reading the stream. Only the first call logs.
func (s *Stream) Cancel(reason error) {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	hook := s.onCancel
	s.mu.Unlock()

	s.log.Error("rendering cancelled for the flight stream", "stream_id", s.id, "reason", reason)
	if hook != nil {
		hook(s.id, reason)
	}
}

// Canceled reports whether Cancel was called.
func (s *Stream) Canceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

var _ io.ReadCloser = (*Stream)(nil)
