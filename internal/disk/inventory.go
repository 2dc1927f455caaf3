package disk

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"minuteman/internal/logging"
)

// Builder turns Source queries into Disk records.
type Builder struct {
	source   Source
	logger   *logging.Logger
	excluded map[string]bool
	busy     func(devicePath string) bool
}

func NewBuilder(source Source, logger *logging.Logger) *Builder {
	return &Builder{
		source:   source,
		logger:   logger,
		excluded: make(map[string]bool),
	}
}

// Exclude hides the given device paths from every inventory.
func (b *Builder) Exclude(paths ...string) {
	for _, p := range paths {
		b.excluded[p] = true
	}
}

// SkipBusy installs a check for devices owned by a running job. Busy devices
// are not queried at all.
func (b *Builder) SkipBusy(busy func(devicePath string) bool) {
	b.busy = busy
}

// Build enumerates external disks. A platform failure yields an empty
// inventory; a failure on one device only drops that device.
func (b *Builder) Build() []Disk {
	devices, err := b.source.ListBlockDevices()
	if err != nil {
		b.logger.Log("WARN", "Block device enumeration failed", "error", err)
		return []Disk{}
	}

	mounts, err := b.source.ListMounts()
	if err != nil {
		b.logger.Log("WARN", "Mount table unavailable", "error", err)
		mounts = nil
	}

	disks := make([]Disk, 0, len(devices))
	for _, dev := range devices {
		if b.excluded[dev.DevicePath] {
			continue
		}
		if b.busy != nil && b.busy(dev.DevicePath) {
			b.logger.Log("DEBUG", "Skipping device locked by a running job", "device", dev.DevicePath)
			continue
		}
		if !IsExternal(dev.SysPath) {
			continue
		}

		d, err := b.buildDisk(dev, mounts)
		if err != nil {
			b.logger.Log("INFO", "Device left out of inventory", "device", dev.DevicePath, "error", err)
			continue
		}
		disks = append(disks, d)
	}

	return disks
}

func (b *Builder) buildDisk(dev BlockDevice, mounts []Mount) (Disk, error) {
	model, err := b.source.ReadAttribute(dev, AttrProduct)
	if err != nil {
		return Disk{}, err
	}
	serial, err := b.source.ReadAttribute(dev, AttrSerial)
	if err != nil {
		return Disk{}, err
	}
	version, err := b.source.ReadAttribute(dev, AttrVersion)
	if err != nil {
		return Disk{}, err
	}

	d := Disk{
		DevicePath:      dev.DevicePath,
		Model:           model,
		SerialNumber:    serial,
		FirmwareVersion: version,
		Type:            b.resolveType(dev),
	}

	if vendor, err := b.source.ReadAttribute(dev, AttrManufacturer); err == nil {
		d.Vendor = vendor
	}
	if sectors, err := b.source.ReadAttribute(dev, AttrSize); err == nil {
		if n, convErr := strconv.ParseUint(sectors, 10, 64); convErr == nil {
			d.SizeBytes = n * 512
		}
	}

	d.Partitions = b.partitions(dev, mounts)
	d.TotalSpace, d.UsedSpace, d.FreeSpace = capacity(d.Partitions)

	return d, nil
}

func (b *Builder) resolveType(dev BlockDevice) DiskType {
	removable := false
	if v, err := b.source.ReadAttribute(dev, AttrRemovable); err == nil {
		removable = v == "1"
	}

	v, err := b.source.ReadAttribute(dev, AttrRotational)
	if err != nil {
		if !errors.Is(err, ErrAttributeUnavailable) {
			b.logger.Log("DEBUG", "Rotational flag read failed", "device", dev.DevicePath, "error", err)
		}
		return ResolveType(removable, false, false)
	}
	return ResolveType(removable, v == "1", true)
}

func (b *Builder) partitions(dev BlockDevice, mounts []Mount) []Partition {
	var parts []Partition
	for _, m := range mounts {
		if !belongsTo(m.Device, dev.DevicePath) {
			continue
		}

		total, free, err := b.source.FilesystemStats(m.MountPoint)
		if err != nil {
			b.logger.Log("DEBUG", "Filesystem stats unavailable", "mount", m.MountPoint, "error", err)
			continue
		}
		if free > total {
			free = total
		}

		parts = append(parts, Partition{
			Name:       m.Device,
			MountPoint: m.MountPoint,
			FileSystem: m.FSType,
			Total:      total,
			Free:       free,
			ReadOnly:   hasOption(m.Options, "ro"),
		})
	}
	return parts
}

// belongsTo reports whether node is the disk itself or one of its
// partitions. Disk names ending in a digit take a "p" before the partition
// number (nvme0n1p1, mmcblk0p1), others take the number directly (sdb1).
func belongsTo(node, diskPath string) bool {
	rest, ok := strings.CutPrefix(node, diskPath)
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	if last := diskPath[len(diskPath)-1]; last >= '0' && last <= '9' {
		var cut bool
		if rest, cut = strings.CutPrefix(rest, "p"); !cut {
			return false
		}
	}
	return allDigits(rest)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// capacity sums the partition totals. With no partitions all values are zero.
func capacity(parts []Partition) (total, used, free uint64) {
	switch len(parts) {
	case 0:
		return 0, 0, 0
	case 1:
		total, free = parts[0].Total, parts[0].Free
	default:
		for _, p := range parts {
			total += p.Total
			free += p.Free
		}
	}
	return total, total - free, free
}

// IsExternal reports whether a canonical sysfs path passes through a USB bus
// segment.
func IsExternal(sysPath string) bool {
	if sysPath == "" {
		return false
	}
	for p := filepath.Clean(sysPath); p != "/" && p != "."; p = filepath.Dir(p) {
		if strings.HasPrefix(filepath.Base(p), "usb") {
			return true
		}
	}
	return false
}

func hasOption(options []string, want string) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}
