package device

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

// A PipeDevice carries frames from one writer to one reader without locks.
//
// Neither end blocks: a write accepts only what fits and a read returns only what
// is available, so a fast thread can sit on either end. Data is never overwritten;
// when the pipe is full, the writer sees a short write.
type PipeDevice struct {
	properties audiodevice.DeviceProperties
	frameSize  int
	capacity   uint64 // frames

	buf []byte

	// Frame counters. rear is advanced by the writer, front by the reader.
	rear  atomic.Uint64
	front atomic.Uint64

	closed atomic.Bool
}

// Create a pipe holding up to capacity frames of the given format.
func NewPipeDevice(properties audiodevice.DeviceProperties, capacity int) (*PipeDevice, error) {
	if !properties.IsValid() {
		return nil, errors.New("invalid pipe format")
	}
	if capacity <= 0 {
		return nil, errors.New("pipe capacity must be positive")
	}
	return &PipeDevice{
		properties: properties,
		frameSize:  properties.FrameSize(),
		capacity:   uint64(capacity),
		buf:        make([]byte, capacity*properties.FrameSize()),
	}, nil
}

func (p *PipeDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return p.properties
}

// The write end.
func (p *PipeDevice) Sink() *PipeSink {
	return &PipeSink{p}
}

// The read end.
func (p *PipeDevice) Source() *PipeSource {
	return &PipeSource{p}
}

// Frames written but not yet read.
func (p *PipeDevice) Available() int {
	return int(p.rear.Load() - p.front.Load())
}

// Total frames ever written.
func (p *PipeDevice) Written() uint64 {
	return p.rear.Load()
}

// After Close, writes fail and reads fail once the pipe is drained.
func (p *PipeDevice) Close() {
	p.closed.Store(true)
}

// Copy frames between the ring and b, starting at frame position pos.
func (p *PipeDevice) copyRing(pos uint64, b []byte, frames int, toRing bool) {
	start := int(pos%p.capacity) * p.frameSize
	n := frames * p.frameSize
	first := min(n, len(p.buf)-start)
	if toRing {
		copy(p.buf[start:], b[:first])
		copy(p.buf, b[first:n])
	} else {
		copy(b, p.buf[start:start+first])
		copy(b[first:n], p.buf)
	}
}

type PipeSink struct {
	p *PipeDevice
}

func (s *PipeSink) GetDeviceProperties() audiodevice.DeviceProperties {
	return s.p.properties
}

func (s *PipeSink) Write(buf []byte, frameCount int) (int, error) {
	p := s.p
	if p.closed.Load() {
		return 0, audiodevice.ErrEndOfData
	}
	if len(buf) < frameCount*p.frameSize {
		return 0, audiodevice.ErrShortBuffer
	}

	rear := p.rear.Load()
	free := p.capacity - (rear - p.front.Load())
	n := int(min(uint64(frameCount), free))
	if n == 0 {
		return 0, nil
	}
	p.copyRing(rear, buf, n, true)
	p.rear.Store(rear + uint64(n))
	return n, nil
}

type PipeSource struct {
	p *PipeDevice
}

func (s *PipeSource) GetDeviceProperties() audiodevice.DeviceProperties {
	return s.p.properties
}

func (s *PipeSource) Read(buf []byte, frameCount int, _ time.Duration) (int, error) {
	p := s.p
	if len(buf) < frameCount*p.frameSize {
		return 0, audiodevice.ErrShortBuffer
	}

	// closed first: a write made before Close is then visible in rear.
	closed := p.closed.Load()
	front := p.front.Load()
	available := p.rear.Load() - front
	if available == 0 && closed {
		return 0, audiodevice.ErrEndOfData
	}
	n := int(min(uint64(frameCount), available))
	if n == 0 {
		return 0, nil
	}
	p.copyRing(front, buf, n, false)
	p.front.Store(front + uint64(n))
	return n, nil
}
