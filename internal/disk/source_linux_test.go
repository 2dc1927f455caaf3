//go:build linux

package disk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"minuteman/internal/logging"
)

// fakeSysfs lays out a minimal /sys tree with one USB stick (sdb) and one
// SATA disk (sda).
func fakeSysfs(t *testing.T) *SysfsSource {
	t.Helper()
	root := t.TempDir()

	mustWrite := func(path, content string) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	usbDev := filepath.Join(root, "devices", "pci0000:00", "usb2", "2-1")
	scsi := filepath.Join(usbDev, "2-1:1.0", "host6", "target6:0:0", "6:0:0:0")
	mustWrite(filepath.Join(usbDev, "manufacturer"), "SanDisk\n")
	mustWrite(filepath.Join(usbDev, "product"), "Cruzer Blade\n")
	mustWrite(filepath.Join(usbDev, "serial"), "4C530001\n")
	mustWrite(filepath.Join(usbDev, "version"), " 2.00\n")
	if err := os.MkdirAll(scsi, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ata := filepath.Join(root, "devices", "pci0000:00", "ata1", "host0", "target0:0:0", "0:0:0:0")
	if err := os.MkdirAll(ata, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	block := filepath.Join(root, "block")
	mustWrite(filepath.Join(block, "sdb", "removable"), "1\n")
	mustWrite(filepath.Join(block, "sdb", "size"), "1024\n")
	mustWrite(filepath.Join(block, "sdb", "queue", "rotational"), "0\n")
	mustWrite(filepath.Join(block, "sda", "removable"), "0\n")
	if err := os.Symlink(scsi, filepath.Join(block, "sdb", "device")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink(ata, filepath.Join(block, "sda", "device")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	// loop devices are never listed
	mustWrite(filepath.Join(block, "loop0", "removable"), "0\n")

	mediaDir := filepath.Join(root, "media", "usb stick")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mounts := "sysfs /sys sysfs rw 0 0\n" +
		"/dev/sdb1 " + filepath.Join(root, "media", `usb\040stick`) + " vfat rw,nosuid 0 0\n" +
		"/dev/sda2 / ext4 rw 0 0\n"
	mustWrite(filepath.Join(root, "mounts"), mounts)

	return &SysfsSource{BlockDir: block, MountsFile: filepath.Join(root, "mounts")}
}

func TestSysfsSourceListsDevices(t *testing.T) {
	src := fakeSysfs(t)
	devices, err := src.ListBlockDevices()
	if err != nil {
		t.Fatalf("ListBlockDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected sda and sdb, got %+v", devices)
	}
	for _, d := range devices {
		if d.Name == "sdb" && !IsExternal(d.SysPath) {
			t.Fatalf("sdb should resolve to a usb path, got %s", d.SysPath)
		}
		if d.Name == "sda" && IsExternal(d.SysPath) {
			t.Fatalf("sda should not be external")
		}
	}
}

func TestSysfsSourceAttributes(t *testing.T) {
	src := fakeSysfs(t)
	devices, err := src.ListBlockDevices()
	if err != nil {
		t.Fatalf("ListBlockDevices: %v", err)
	}
	var sdb, sda BlockDevice
	for _, d := range devices {
		switch d.Name {
		case "sdb":
			sdb = d
		case "sda":
			sda = d
		}
	}

	if v, err := src.ReadAttribute(sdb, AttrVersion); err != nil || v != "2.00" {
		t.Fatalf("version = %q, %v", v, err)
	}
	if v, err := src.ReadAttribute(sdb, AttrRotational); err != nil || v != "0" {
		t.Fatalf("rotational = %q, %v", v, err)
	}
	if _, err := src.ReadAttribute(sda, AttrProduct); !errors.Is(err, ErrAttributeUnavailable) {
		t.Fatalf("expected ErrAttributeUnavailable for sda product, got %v", err)
	}
	if _, err := src.ReadAttribute(sda, AttrRotational); !errors.Is(err, ErrAttributeUnavailable) {
		t.Fatalf("expected ErrAttributeUnavailable for missing rotational, got %v", err)
	}
}

func TestSysfsSourceMountsAndInventory(t *testing.T) {
	src := fakeSysfs(t)
	mounts, err := src.ListMounts()
	if err != nil {
		t.Fatalf("ListMounts: %v", err)
	}
	if len(mounts) != 2 {
		t.Fatalf("expected 2 /dev mounts, got %+v", mounts)
	}
	if filepath.Base(mounts[0].MountPoint) != "usb stick" {
		t.Fatalf("mount point not unescaped: %q", mounts[0].MountPoint)
	}

	disks := NewBuilder(src, logging.Discard()).Build()
	if len(disks) != 1 {
		t.Fatalf("expected only the usb stick, got %+v", disks)
	}
	d := disks[0]
	if d.Type != TypeRemovable || d.Vendor != "SanDisk" || d.SizeBytes != 1024*512 {
		t.Fatalf("unexpected disk %+v", d)
	}
	if len(d.Partitions) != 1 || d.Partitions[0].FileSystem != "vfat" {
		t.Fatalf("partition not resolved: %+v", d.Partitions)
	}
	if d.TotalSpace == 0 || d.UsedSpace+d.FreeSpace != d.TotalSpace {
		t.Fatalf("capacity invariant broken: %+v", d)
	}
}
