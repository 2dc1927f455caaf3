package rawio

import (
	"errors"
	"io"
	"sync"
)

// ErrDeviceFull is returned when a write runs past the end of a MemDevice.
var ErrDeviceFull = errors.New("no space left on device")

// MemDevice is a fixed-size in-memory device. It backs simulated wipes and
// tests.
type MemDevice struct {
	mu     sync.Mutex
	data   []byte
	pos    int64
	closed bool
}

func NewMemDevice(size int64) *MemDevice {
	return &MemDevice{data: make([]byte, size)}
}

// NewMemDeviceFrom wraps existing contents. The slice is not copied.
func NewMemDeviceFrom(data []byte) *MemDevice {
	return &MemDevice{data: data}
}

func (m *MemDevice) Size() int64 {
	return int64(len(m.data))
}

// Bytes exposes the current contents.
func (m *MemDevice) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

func (m *MemDevice) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	if m.pos >= int64(len(m.data)) {
		return 0, ErrDeviceFull
	}
	n := copy(m.data[m.pos:], p)
	m.pos += int64(n)
	if n < len(p) {
		return n, ErrDeviceFull
	}
	return n, nil
}

func (m *MemDevice) Seek(offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = abs
	return abs, nil
}

func (m *MemDevice) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
