//go:build !linux

package disk

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("disk enumeration is not supported on " + runtime.GOOS)

type unsupportedSource struct{}

// NewPlatformSource returns the Source for the running OS.
func NewPlatformSource() Source {
	return unsupportedSource{}
}

func (unsupportedSource) ListBlockDevices() ([]BlockDevice, error) { return nil, errUnsupported }

func (unsupportedSource) ReadAttribute(BlockDevice, string) (string, error) {
	return "", ErrAttributeUnavailable
}

func (unsupportedSource) ListMounts() ([]Mount, error) { return nil, errUnsupported }

func (unsupportedSource) FilesystemStats(string) (uint64, uint64, error) {
	return 0, 0, errUnsupported
}
