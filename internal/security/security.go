package security

import (
	"errors"
	"fmt"
	"path/filepath"

	"minuteman/internal/config"
	"minuteman/internal/disk"
)

var (
	// ErrWritesDisabled is returned when --armed is given but the config
	// does not allow device writes.
	ErrWritesDisabled = errors.New("device writes are disabled (set security.allow_device_writes: true)")
	// ErrNotRoot is returned when armed writes need root and we are not.
	ErrNotRoot = errors.New("root privileges are required for device writes")
	// ErrExcluded is returned for a device listed in security.excluded_devices.
	ErrExcluded = errors.New("device is excluded by configuration")
)

// WriteMode says where sanitization writes go.
type WriteMode int

const (
	// Simulated jobs write to an in-memory stand-in device.
	Simulated WriteMode = iota
	// Armed jobs overwrite the real device.
	Armed
)

func (m WriteMode) String() string {
	if m == Armed {
		return "ARMED"
	}
	return "SIMULATION"
}

// SecurityChecks resolves the write mode. Real writes need both the armed
// flag and allow_device_writes; asking for them without the config opt-in is
// an error rather than a silent fallback.
func SecurityChecks(cfg *config.Config, armed bool) (WriteMode, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if !armed {
		return Simulated, nil
	}
	if !cfg.Security.AllowDeviceWrites {
		return Simulated, ErrWritesDisabled
	}
	if cfg.Security.RequireRoot && !IsRoot() {
		return Simulated, ErrNotRoot
	}
	return Armed, nil
}

// ShouldSkipDisk reports whether the disk is excluded, by device path, base
// name or serial number.
func ShouldSkipDisk(cfg *config.Config, d disk.Disk) bool {
	if cfg == nil {
		return false
	}
	for _, excluded := range cfg.Security.ExcludedDevices {
		switch excluded {
		case "":
			continue
		case d.DevicePath, filepath.Base(d.DevicePath), d.SerialNumber:
			return true
		}
	}
	return false
}

// CheckTarget refuses disks that must never be sanitized.
func CheckTarget(cfg *config.Config, d disk.Disk) error {
	if ShouldSkipDisk(cfg, d) {
		return fmt.Errorf("%s: %w", d.DevicePath, ErrExcluded)
	}
	for _, p := range d.Partitions {
		if p.MountPoint == "/" {
			return fmt.Errorf("%s holds the root filesystem", d.DevicePath)
		}
	}
	return nil
}
