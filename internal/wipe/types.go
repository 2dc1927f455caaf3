package wipe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDeviceBusy is returned when a job is already running on the device.
	ErrDeviceBusy = errors.New("device is busy with another sanitization job")
	// ErrCancelled is the reason recorded for a cancelled job.
	ErrCancelled = errors.New("sanitization cancelled")
	// ErrTargetRefused wraps the reason a device may not be sanitized.
	ErrTargetRefused = errors.New("drive refused")
)

// VerificationMismatchError reports the first read-back byte that differs
// from the pattern written in the same pass.
type VerificationMismatchError struct {
	Pass   int // 0-based pass index
	Offset int64
	Want   byte
	Got    byte
}

func (e *VerificationMismatchError) Error() string {
	return fmt.Sprintf("verification mismatch in pass %d at offset %d: want 0x%02x, got 0x%02x",
		e.Pass+1, e.Offset, e.Want, e.Got)
}

// Status is the outcome of a job
type Status int

const (
	StatusRunning Status = iota
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusSucceeded:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Phase tells whether the current pass is writing or reading back.
type Phase int

const (
	PhaseWriting Phase = iota
	PhaseVerifying
)

func (p Phase) String() string {
	if p == PhaseVerifying {
		return "verifying"
	}
	return "writing"
}

// Snapshot is a consistent copy of a job's progress.
//
// Progress is (PassIndex + pass fraction) / PassCount. An unverified pass
// contributes BytesWritten / DeviceSize. In a pass with verify the write and
// the read-back each count for half. Progress never decreases and is 1 only
// once the job succeeded.
type Snapshot struct {
	JobID         string
	DevicePath    string
	Model         string
	Serial        string
	Method        string
	PassIndex     int // 0-based, equals PassCount once finished successfully
	PassCount     int
	VerifyCount   int
	Phase         Phase
	DeviceSize    int64
	BytesWritten  int64 // this pass
	BytesVerified int64 // this pass
	TotalWritten  int64 // all passes
	Progress      float64
	Status        Status
	Err           error
	Simulated     bool
	StartTime     time.Time
	EndTime       time.Time
}

// Round returns the 1-based round shown to the operator.
func (s Snapshot) Round() int {
	if s.PassIndex >= s.PassCount {
		return s.PassCount
	}
	return s.PassIndex + 1
}

// Checkpoint records how far a running job got. It is informational only;
// a new job always starts at round 1.
type Checkpoint struct {
	JobID      string    `yaml:"job_id" json:"job_id"`
	DevicePath string    `yaml:"device_path" json:"device_path"`
	Serial     string    `yaml:"serial" json:"serial"`
	Method     string    `yaml:"method" json:"method"`
	PassIndex  int       `yaml:"pass_index" json:"pass_index"`
	Offset     int64     `yaml:"offset" json:"offset"`
	UpdatedAt  time.Time `yaml:"updated_at" json:"updated_at"`
}

// Checkpointer persists checkpoints while a job runs. Jobs on different
// devices share one Checkpointer; Clear must only drop the record of the
// given job.
type Checkpointer interface {
	Save(Checkpoint) error
	Clear(devicePath, jobID string) error
}

// Describe turns a job failure into an operator-facing message.
func Describe(err error) string {
	var mismatch *VerificationMismatchError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "Sanitization cancelled; the device is partially overwritten"
	case errors.As(err, &mismatch):
		return "Wipe did not verify: " + mismatch.Error()
	case errors.Is(err, ErrTargetRefused):
		return "Drive refused: " + strings.TrimPrefix(err.Error(), ErrTargetRefused.Error()+": ")
	case errors.Is(err, ErrDeviceBusy):
		return "Device busy: " + err.Error()
	default:
		return "Disk failed: " + err.Error()
	}
}
