//go:build linux

package disk

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// SysfsSource reads devices from sysfs and mounts from /proc/mounts.
type SysfsSource struct {
	BlockDir   string // /sys/block
	MountsFile string // /proc/mounts
}

// NewPlatformSource returns the Source for the running OS.
func NewPlatformSource() Source {
	return &SysfsSource{
		BlockDir:   "/sys/block",
		MountsFile: "/proc/mounts",
	}
}

func (s *SysfsSource) ListBlockDevices() ([]BlockDevice, error) {
	entries, err := os.ReadDir(s.BlockDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.BlockDir, err)
	}

	excludePrefixes := []string{"loop", "zram", "ram"}

	var devices []BlockDevice
	for _, e := range entries {
		name := e.Name()

		skip := false
		for _, prefix := range excludePrefixes {
			if strings.HasPrefix(name, prefix) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		// Virtual devices have no device link.
		sysPath, err := filepath.EvalSymlinks(filepath.Join(s.BlockDir, name, "device"))
		if err != nil {
			continue
		}

		devices = append(devices, BlockDevice{
			Name:       name,
			DevicePath: "/dev/" + name,
			SysPath:    sysPath,
		})
	}
	return devices, nil
}

func (s *SysfsSource) ReadAttribute(dev BlockDevice, name string) (string, error) {
	switch name {
	case AttrRemovable, AttrRotational, AttrSize:
		return readAttr(filepath.Join(s.BlockDir, dev.Name, name))
	}

	dir, ok := usbAttributeDir(dev.SysPath)
	if !ok {
		return "", fmt.Errorf("%s: no identity attributes: %w", dev.DevicePath, ErrAttributeUnavailable)
	}
	return readAttr(filepath.Join(dir, name))
}

func (s *SysfsSource) ListMounts() ([]Mount, error) {
	f, err := os.Open(s.MountsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.MountsFile, err)
	}
	defer f.Close()

	var mounts []Mount
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		mounts = append(mounts, Mount{
			Device:     fields[0],
			MountPoint: unescapeMountField(fields[1]),
			FSType:     fields[2],
			Options:    strings.Split(fields[3], ","),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", s.MountsFile, err)
	}
	return mounts, nil
}

func (s *SysfsSource) FilesystemStats(path string) (total, free uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	bsize := uint64(st.Frsize)
	if bsize == 0 {
		bsize = uint64(st.Bsize)
	}
	usedByAll := (st.Blocks - st.Bfree) * bsize
	free = st.Bavail * bsize
	// Blocks reserved for root count as neither used nor free.
	return usedByAll + free, free, nil
}

// usbAttributeDir walks up from the device's sysfs path to the USB device
// directory carrying manufacturer, product and serial.
func usbAttributeDir(sysPath string) (string, bool) {
	for p := sysPath; p != "/" && p != "."; p = filepath.Dir(p) {
		if exists(filepath.Join(p, AttrManufacturer)) &&
			exists(filepath.Join(p, AttrProduct)) &&
			exists(filepath.Join(p, AttrSerial)) {
			return p, true
		}
	}
	return "", false
}

func readAttr(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrAttributeUnavailable)
	}
	return strings.TrimSpace(string(data)), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// unescapeMountField decodes the octal escapes (\040 etc.) used in
// /proc/mounts.
func unescapeMountField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
