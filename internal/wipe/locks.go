package wipe

import (
	"fmt"
	"sync"
)

// deviceLocks grants one job at a time exclusive use of a device path.
type deviceLocks struct {
	mu   sync.Mutex
	held map[string]string // device path -> job id
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{held: make(map[string]string)}
}

func (l *deviceLocks) acquire(path, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if owner, ok := l.held[path]; ok {
		return fmt.Errorf("%s (job %s): %w", path, owner, ErrDeviceBusy)
	}
	l.held[path] = jobID
	return nil
}

func (l *deviceLocks) release(path, jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[path] == jobID {
		delete(l.held, path)
	}
}

func (l *deviceLocks) busy(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[path]
	return ok
}
