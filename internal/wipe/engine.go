package wipe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"minuteman/internal/disk"
	"minuteman/internal/logging"
	"minuteman/internal/rawio"
)

// Options tune the pass loop.
type Options struct {
	ChunkSize int
	// CheckpointEvery is the number of chunks between checkpoint saves;
	// zero disables checkpoints.
	CheckpointEvery int
}

// Engine creates and runs sanitization jobs. At most one job runs per
// device path.
type Engine struct {
	opener      Opener
	opts        Options
	logger      *logging.Logger
	locks       *deviceLocks
	checkpoints Checkpointer
	onFinish    []func(Snapshot)
}

func NewEngine(opener Opener, opts Options, logger *logging.Logger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = rawio.ChunkSize
	}
	return &Engine{
		opener: opener,
		opts:   opts,
		logger: logger,
		locks:  newDeviceLocks(),
	}
}

// SetCheckpointer enables checkpoint records for subsequent jobs.
func (e *Engine) SetCheckpointer(c Checkpointer) {
	e.checkpoints = c
}

// OnFinish registers a callback invoked once per job with its final
// snapshot.
func (e *Engine) OnFinish(fn func(Snapshot)) {
	e.onFinish = append(e.onFinish, fn)
}

// Busy reports whether a job currently owns the device path.
func (e *Engine) Busy(devicePath string) bool {
	return e.locks.busy(devicePath)
}

// Simulated reports whether jobs write to a stand-in device.
func (e *Engine) Simulated() bool {
	return e.opener.Simulated()
}

// NewJob locks and opens the device and returns a job positioned at round
// 1. The caller drives it with Step or Run.
func (e *Engine) NewJob(d disk.Disk, m Method) (*Job, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := e.locks.acquire(d.DevicePath, id); err != nil {
		return nil, err
	}

	dev, size, err := e.opener.Open(d)
	if err != nil {
		e.locks.release(d.DevicePath, id)
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	if size <= 0 {
		dev.Close()
		e.locks.release(d.DevicePath, id)
		return nil, fmt.Errorf("device %s reports no addressable bytes", d.DevicePath)
	}

	chunk := e.opts.ChunkSize
	j := &Job{
		engine: e,
		method: m,
		dev:    dev,
		size:   size,
		chunk:  chunk,
		buf:    rawio.GetBuffer(chunk),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
		snap: Snapshot{
			JobID:       id,
			DevicePath:  d.DevicePath,
			Model:       d.Model,
			Serial:      d.SerialNumber,
			Method:      m.Name,
			PassCount:   len(m.Passes),
			VerifyCount: m.VerifyCount(),
			DeviceSize:  size,
			Status:      StatusRunning,
			Simulated:   e.opener.Simulated(),
			StartTime:   time.Now(),
		},
	}

	e.logger.Log("INFO", "Sanitization started", "job", id, "device", d.DevicePath,
		"method", m.Name, "passes", len(m.Passes), "size", size, "simulated", j.snap.Simulated)
	return j, nil
}

// Start creates a job and runs it on a background goroutine.
func (e *Engine) Start(ctx context.Context, d disk.Disk, m Method) (*Job, error) {
	j, err := e.NewJob(d, m)
	if err != nil {
		return nil, err
	}
	go j.Run(ctx)
	return j, nil
}
