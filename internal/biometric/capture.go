package biometric

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCameraPermissionDenied = errors.New("camera permission denied")
	ErrCameraNotFound         = errors.New("camera not found")
	ErrCameraBusy             = errors.New("camera busy")

	ErrStreamExhausted = errors.New("no more frames")
)

// Constraints describe the stream a terminal asks for.
type Constraints struct {
	Width      int
	Height     int
	FacingMode string
}

func DefaultConstraints() Constraints {
	return Constraints{Width: 640, Height: 480, FacingMode: "user"}
}

// Frame is one sampled image. Kiosks run face detection locally and send the
// descriptors of every face they found.
type Frame struct {
	CapturedAt  time.Time
	Descriptors []Embedding
}

// Capture hands out exclusive access to a camera.
type Capture interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream yields frames until released. Release is idempotent.
type Stream interface {
	Next(ctx context.Context) (Frame, error)
	Release()
}

// Extractor produces face descriptors from a frame.
type Extractor interface {
	Extract(frame Frame) ([]Embedding, error)
}

// DescriptorExtractor returns the descriptors the kiosk computed on-device.
type DescriptorExtractor struct{}

func (DescriptorExtractor) Extract(frame Frame) ([]Embedding, error) {
	return frame.Descriptors, nil
}

// FrameBuffer is a Capture over frames a kiosk sampled and uploaded with its
// clock request. Only one stream may be open at a time.
type FrameBuffer struct {
	mu     sync.Mutex
	frames []Frame
	open   bool
}

func NewFrameBuffer(frames []Frame) *FrameBuffer {
	return &FrameBuffer{frames: frames}
}

func (b *FrameBuffer) Acquire(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) == 0 {
		return nil, ErrCameraNotFound
	}
	if b.open {
		return nil, ErrCameraBusy
	}
	b.open = true
	return &bufferStream{buf: b}, nil
}

// Open reports whether a stream is currently held.
func (b *FrameBuffer) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

type bufferStream struct {
	buf      *FrameBuffer
	next     int
	released sync.Once
}

func (s *bufferStream) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.buf.frames) {
		return Frame{}, ErrStreamExhausted
	}
	f := s.buf.frames[s.next]
	s.next++
	return f, nil
}

func (s *bufferStream) Release() {
	s.released.Do(func() {
		s.buf.mu.Lock()
		s.buf.open = false
		s.buf.mu.Unlock()
	})
}
