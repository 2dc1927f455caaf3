package reporting

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"minuteman/internal/wipe"
)

// CheckpointStore keeps the latest checkpoint of every running job in one
// YAML file, one record per device path. The records only tell the operator
// a run was interrupted; jobs never resume from them.
type CheckpointStore struct {
	path string
	mu   sync.Mutex
}

type checkpointFile struct {
	Records []wipe.Checkpoint `yaml:"records"`
}

var _ wipe.Checkpointer = (*CheckpointStore)(nil)

func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

func (s *CheckpointStore) Path() string { return s.path }

// Save replaces the record for cp.DevicePath. An unreadable file is
// overwritten.
func (s *CheckpointStore) Save(cp wipe.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		records = nil
	}

	replaced := false
	for i := range records {
		if records[i].DevicePath == cp.DevicePath {
			records[i] = cp
			replaced = true
		}
	}
	if !replaced {
		records = append(records, cp)
	}
	return s.write(records)
}

// Clear removes the record of jobID on devicePath. Records of other jobs are
// left alone and a missing record is not an error.
func (s *CheckpointStore) Clear(devicePath, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.DevicePath == devicePath && r.JobID == jobID {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == len(records) {
		return nil
	}
	if len(kept) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove checkpoint: %w", err)
		}
		return nil
	}
	return s.write(kept)
}

// Load returns the leftover records ordered by device path, or nil when
// there are none.
func (s *CheckpointStore) Load() ([]wipe.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CheckpointStore) load() ([]wipe.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var file checkpointFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", s.path, err)
	}
	sort.Slice(file.Records, func(i, j int) bool {
		return file.Records[i].DevicePath < file.Records[j].DevicePath
	})
	return file.Records, nil
}

// write replaces the file atomically.
func (s *CheckpointStore) write(records []wipe.Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := yaml.Marshal(&checkpointFile{Records: records})
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return os.Rename(tmp, s.path)
}
