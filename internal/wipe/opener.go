package wipe

import (
	"minuteman/internal/disk"
	"minuteman/internal/rawio"
)

// Opener provides the write target for a disk.
type Opener interface {
	Open(d disk.Disk) (dev rawio.Device, size int64, err error)
	// Simulated reports whether the target is not the real device.
	Simulated() bool
}

// DeviceOpener opens the raw device itself.
type DeviceOpener struct {
	MaxSpeedMBps float64
}

func (o DeviceOpener) Open(d disk.Disk) (rawio.Device, int64, error) {
	f, size, err := rawio.OpenDevice(d.DevicePath, true)
	if err != nil {
		return nil, 0, err
	}
	return rawio.Throttle(f, o.MaxSpeedMBps), size, nil
}

func (DeviceOpener) Simulated() bool { return false }

// SimulatedOpener hands out an in-memory device of fixed size, so the
// wizard can be exercised without touching hardware.
type SimulatedOpener struct {
	Size         int64
	MaxSpeedMBps float64
}

func (o SimulatedOpener) Open(disk.Disk) (rawio.Device, int64, error) {
	dev := rawio.NewMemDevice(o.Size)
	return rawio.Throttle(dev, o.MaxSpeedMBps), o.Size, nil
}

func (SimulatedOpener) Simulated() bool { return true }
