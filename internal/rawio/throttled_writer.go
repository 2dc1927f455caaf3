package rawio

import (
	"io"
	"sync"
	"time"
)

// ThrottledWriter caps the write rate of the wrapped device. Reads and seeks
// pass straight through.
type ThrottledWriter struct {
	dev          Device
	maxSpeedMBps float64
	lastWrite    time.Time
	mu           sync.Mutex
	closed       bool
}

// Throttle wraps dev when maxSpeedMBps is positive and returns dev unchanged
// otherwise.
func Throttle(dev Device, maxSpeedMBps float64) Device {
	if maxSpeedMBps <= 0 {
		return dev
	}
	return &ThrottledWriter{
		dev:          dev,
		maxSpeedMBps: maxSpeedMBps,
		lastWrite:    time.Now(),
	}
}

func (tw *ThrottledWriter) Write(data []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return 0, io.ErrClosedPipe
	}
	if len(data) == 0 {
		return 0, nil
	}

	bytesPerSec := tw.maxSpeedMBps * 1024 * 1024
	expected := time.Duration(float64(len(data)) / bytesPerSec * float64(time.Second))
	actual := time.Since(tw.lastWrite)
	if actual < expected {
		time.Sleep(expected - actual)
	}

	n, err := tw.dev.Write(data)
	tw.lastWrite = time.Now()
	return n, err
}

func (tw *ThrottledWriter) Read(p []byte) (int, error) {
	return tw.dev.Read(p)
}

func (tw *ThrottledWriter) Seek(offset int64, whence int) (int64, error) {
	return tw.dev.Seek(offset, whence)
}

// Sync flushes the wrapped device when it supports it.
func (tw *ThrottledWriter) Sync() error {
	if s, ok := tw.dev.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (tw *ThrottledWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}

	tw.closed = true
	return tw.dev.Close()
}
