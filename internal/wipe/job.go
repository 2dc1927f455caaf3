package wipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"minuteman/internal/rawio"
)

// Job is one run of a method against a device. Step must only be called
// from a single goroutine; Snapshot, Cancel and Done are safe from any.
type Job struct {
	engine *Engine
	method Method

	// Owned by the stepping goroutine.
	dev       rawio.Device
	size      int64
	chunk     int
	buf       []byte
	stream    io.Reader
	verifier  *verifier
	passIndex int
	phase     Phase
	written   int64
	verified  int64
	total     int64
	chunks    int

	mu   sync.Mutex
	snap Snapshot

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

func (j *Job) ID() string { return j.snap.JobID }

func (j *Job) DevicePath() string { return j.snap.DevicePath }

// Snapshot returns a copy of the job's published state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap
}

// Running reports whether the job has not reached an outcome yet.
func (j *Job) Running() bool {
	return j.Snapshot().Status == StatusRunning
}

// Cancel asks the job to stop before its next chunk. The device is left
// partially overwritten.
func (j *Job) Cancel() {
	j.cancelOnce.Do(func() { close(j.cancel) })
}

// Done is closed when the job reaches an outcome.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Run steps the job until it finishes or ctx is cancelled.
func (j *Job) Run(ctx context.Context) Snapshot {
	for {
		if ctx.Err() != nil {
			j.Cancel()
		}
		if !j.Step() {
			return j.Snapshot()
		}
	}
}

// Step performs one chunk of work and reports whether more remains.
func (j *Job) Step() bool {
	if !j.Running() {
		return false
	}

	select {
	case <-j.cancel:
		j.finish(StatusCancelled, ErrCancelled)
		return false
	default:
	}

	if j.stream == nil && j.verifier == nil {
		if err := j.beginPass(); err != nil {
			j.finish(StatusFailed, err)
			return false
		}
	}

	var err error
	if j.phase == PhaseWriting {
		err = j.writeChunk()
	} else {
		err = j.verifyChunk()
	}
	if err != nil {
		j.finish(StatusFailed, err)
		return false
	}

	j.maybeCheckpoint()

	if j.passIndex == len(j.method.Passes) {
		j.finish(StatusSucceeded, nil)
		return false
	}
	j.publish()
	return true
}

func (j *Job) beginPass() error {
	if err := rawio.Rewind(j.dev); err != nil {
		return err
	}
	j.phase = PhaseWriting
	j.written, j.verified = 0, 0
	j.stream = newStream(j.method.Passes, j.passIndex)

	p := j.method.Passes[j.passIndex]
	j.engine.logger.Log("INFO", "Pass started", "job", j.ID(), "round", j.passIndex+1,
		"of", len(j.method.Passes), "pattern", p.Pattern, "verify", p.Verify)
	return nil
}

func (j *Job) writeChunk() error {
	n := j.nextChunk(j.written)
	k, err := rawio.CopyChunk(j.dev, j.stream, j.buf[:n], j.written)
	if err != nil {
		return err
	}
	j.written += int64(k)
	j.total += int64(k)
	if j.written < j.size {
		return nil
	}

	if s, ok := j.dev.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return &rawio.IOError{Op: "sync", Offset: j.written, Err: err}
		}
	}

	if !j.method.Passes[j.passIndex].Verify {
		j.advance()
		return nil
	}

	if err := rawio.Rewind(j.dev); err != nil {
		return err
	}
	j.stream = nil
	j.verifier = newVerifier(j.method.Passes, j.passIndex, j.chunk)
	j.phase = PhaseVerifying
	j.engine.logger.Log("INFO", "Verification started", "job", j.ID(), "round", j.passIndex+1)
	return nil
}

func (j *Job) verifyChunk() error {
	n := j.nextChunk(j.verified)
	k, err := rawio.CopyChunk(j.verifier, j.dev, j.buf[:n], j.verified)
	if err != nil {
		var mismatch *VerificationMismatchError
		if errors.As(err, &mismatch) {
			return mismatch
		}
		if errors.Is(err, io.EOF) {
			return &rawio.IOError{Op: "verify read", Offset: j.verified, Err: io.ErrUnexpectedEOF}
		}
		return err
	}
	j.verified += int64(k)
	if j.verified >= j.size {
		j.advance()
	}
	return nil
}

func (j *Job) nextChunk(done int64) int {
	remaining := j.size - done
	if remaining < int64(j.chunk) {
		return int(remaining)
	}
	return j.chunk
}

func (j *Job) advance() {
	j.passIndex++
	j.stream = nil
	j.verifier = nil
	j.phase = PhaseWriting
	j.written, j.verified = 0, 0
}

// passFraction counts read-back bytes as half of a verified pass.
func (j *Job) passFraction() float64 {
	size := float64(j.size)
	if j.passIndex < len(j.method.Passes) && j.method.Passes[j.passIndex].Verify {
		return (float64(j.written) + float64(j.verified)) / (2 * size)
	}
	return float64(j.written) / size
}

func (j *Job) publish() {
	progress := (float64(j.passIndex) + j.passFraction()) / float64(len(j.method.Passes))
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	// Never move backwards, even across pass boundaries with rounding.
	if progress < j.snap.Progress {
		progress = j.snap.Progress
	}
	// 1.0 is reserved for success.
	if progress >= 1 && j.passIndex < len(j.method.Passes) {
		progress = j.snap.Progress
	}
	j.snap.PassIndex = j.passIndex
	j.snap.Phase = j.phase
	j.snap.BytesWritten = j.written
	j.snap.BytesVerified = j.verified
	j.snap.TotalWritten = j.total
	j.snap.Progress = progress
}

func (j *Job) maybeCheckpoint() {
	cp := j.engine.checkpoints
	every := j.engine.opts.CheckpointEvery
	if cp == nil || every <= 0 {
		return
	}
	j.chunks++
	if j.chunks%every != 0 {
		return
	}
	offset := j.written
	if j.phase == PhaseVerifying {
		offset = j.verified
	}
	err := cp.Save(Checkpoint{
		JobID:      j.ID(),
		DevicePath: j.snap.DevicePath,
		Serial:     j.snap.Serial,
		Method:     j.method.Name,
		PassIndex:  j.passIndex,
		Offset:     offset,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		j.engine.logger.Log("WARN", "Checkpoint save failed", "job", j.ID(), "error", err)
	}
}

func (j *Job) finish(status Status, reason error) {
	if status == StatusSucceeded {
		j.passIndex = len(j.method.Passes)
	}
	closeErr := j.dev.Close()
	rawio.PutBuffer(j.buf)
	j.buf = nil
	j.engine.locks.release(j.snap.DevicePath, j.snap.JobID)

	if status == StatusSucceeded && closeErr != nil {
		status = StatusFailed
		reason = &rawio.IOError{Op: "close", Offset: j.size, Err: closeErr}
	}

	j.mu.Lock()
	if status == StatusSucceeded {
		j.snap.Progress = 1
		j.snap.PassIndex = len(j.method.Passes)
		j.snap.BytesWritten = 0
		j.snap.BytesVerified = 0
	} else {
		j.snap.PassIndex = j.passIndex
		j.snap.Phase = j.phase
		j.snap.BytesWritten = j.written
		j.snap.BytesVerified = j.verified
	}
	j.snap.TotalWritten = j.total
	j.snap.Status = status
	j.snap.Err = reason
	j.snap.EndTime = time.Now()
	final := j.snap
	j.mu.Unlock()

	if cp := j.engine.checkpoints; cp != nil {
		if err := cp.Clear(final.DevicePath, final.JobID); err != nil {
			j.engine.logger.Log("WARN", "Checkpoint clear failed", "job", final.JobID, "error", err)
		}
	}

	level := "INFO"
	if status == StatusFailed {
		level = "ERROR"
	}
	j.engine.logger.Log(level, "Sanitization finished", "job", final.JobID, "device", final.DevicePath,
		"status", status, "bytes", final.TotalWritten, "duration", final.EndTime.Sub(final.StartTime).Truncate(time.Millisecond),
		"reason", fmt.Sprint(reason))

	for _, fn := range j.engine.onFinish {
		fn(final)
	}
	close(j.done)
}
