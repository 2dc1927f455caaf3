package disk

import (
	"errors"
	"fmt"
	"testing"

	"minuteman/internal/logging"
)

type fakeSource struct {
	devices  []BlockDevice
	attrs    map[string]map[string]string // device name -> attribute -> value
	mounts   []Mount
	stats    map[string][2]uint64
	listErr  error
	attrHits map[string]int
}

func (f *fakeSource) ListBlockDevices() ([]BlockDevice, error) {
	return f.devices, f.listErr
}

func (f *fakeSource) ReadAttribute(dev BlockDevice, name string) (string, error) {
	if f.attrHits == nil {
		f.attrHits = make(map[string]int)
	}
	f.attrHits[dev.Name]++
	v, ok := f.attrs[dev.Name][name]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", dev.Name, name, ErrAttributeUnavailable)
	}
	return v, nil
}

func (f *fakeSource) ListMounts() ([]Mount, error) { return f.mounts, nil }

func (f *fakeSource) FilesystemStats(path string) (uint64, uint64, error) {
	s, ok := f.stats[path]
	if !ok {
		return 0, 0, errors.New("no such mount")
	}
	return s[0], s[1], nil
}

func usbDevice(name string) BlockDevice {
	return BlockDevice{
		Name:       name,
		DevicePath: "/dev/" + name,
		SysPath:    "/sys/devices/pci0000:00/0000:00:14.0/usb2/2-1/2-1:1.0/host6/target6:0:0/6:0:0:0",
	}
}

func identity(extra map[string]string) map[string]string {
	m := map[string]string{
		AttrProduct: "Cruzer Blade",
		AttrSerial:  "4C530001",
		AttrVersion: "1.00",
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestResolveTypeTable(t *testing.T) {
	cases := []struct {
		removable, rotational, readable bool
		want                            DiskType
	}{
		{true, true, true, TypeRemovable},
		{true, true, false, TypeRemovable},
		{true, false, true, TypeRemovable},
		{true, false, false, TypeRemovable},
		{false, true, true, TypeHDD},
		{false, false, true, TypeSSD},
		{false, true, false, TypeUnknown},
		{false, false, false, TypeUnknown},
	}
	for _, tc := range cases {
		if got := ResolveType(tc.removable, tc.rotational, tc.readable); got != tc.want {
			t.Fatalf("ResolveType(%v, %v, %v) = %s, want %s", tc.removable, tc.rotational, tc.readable, got, tc.want)
		}
	}
}

func TestIsExternal(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/sys/devices/pci0000:00/0000:00:14.0/usb2/2-1/2-1:1.0/host6/target6:0:0/6:0:0:0", true},
		{"/sys/devices/pci0000:00/0000:00:17.0/ata1/host0/target0:0:0/0:0:0:0", false},
		{"/sys/devices/pci0000:00/0000:00:1d.0/0000:3d:00.0/nvme/nvme0", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsExternal(tc.path); got != tc.want {
			t.Fatalf("IsExternal(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestBuildSkipsInternalAndIncompleteDevices(t *testing.T) {
	internal := BlockDevice{Name: "sda", DevicePath: "/dev/sda", SysPath: "/sys/devices/pci0000:00/ata1/host0"}
	src := &fakeSource{
		devices: []BlockDevice{internal, usbDevice("sdb"), usbDevice("sdc")},
		attrs: map[string]map[string]string{
			"sda": identity(nil),
			"sdb": identity(map[string]string{AttrRemovable: "1"}),
			"sdc": {AttrProduct: "No Serial", AttrVersion: "2.0"},
		},
	}

	disks := NewBuilder(src, logging.Discard()).Build()
	if len(disks) != 1 {
		t.Fatalf("expected 1 disk, got %d: %+v", len(disks), disks)
	}
	d := disks[0]
	if d.DevicePath != "/dev/sdb" || d.Type != TypeRemovable {
		t.Fatalf("unexpected disk %+v", d)
	}
	if d.Model != "Cruzer Blade" || d.SerialNumber != "4C530001" || d.FirmwareVersion != "1.00" {
		t.Fatalf("identity not populated: %+v", d)
	}
	if src.attrHits["sda"] != 0 {
		t.Fatalf("internal device should not be queried")
	}
}

func TestBuildResolvesTypeFromRotational(t *testing.T) {
	src := &fakeSource{
		devices: []BlockDevice{usbDevice("sdb"), usbDevice("sdc"), usbDevice("sdd")},
		attrs: map[string]map[string]string{
			"sdb": identity(map[string]string{AttrRemovable: "0", AttrRotational: "1"}),
			"sdc": identity(map[string]string{AttrRemovable: "0", AttrRotational: "0"}),
			"sdd": identity(map[string]string{AttrRemovable: "0"}),
		},
	}
	disks := NewBuilder(src, logging.Discard()).Build()
	want := map[string]DiskType{"/dev/sdb": TypeHDD, "/dev/sdc": TypeSSD, "/dev/sdd": TypeUnknown}
	if len(disks) != 3 {
		t.Fatalf("expected 3 disks, got %d", len(disks))
	}
	for _, d := range disks {
		if d.Type != want[d.DevicePath] {
			t.Fatalf("%s: type %s, want %s", d.DevicePath, d.Type, want[d.DevicePath])
		}
	}
}

func TestBuildCapacity(t *testing.T) {
	cases := []struct {
		name                string
		mounts              []Mount
		stats               map[string][2]uint64
		total, used, free   uint64
		partitions          int
		readOnlyFirst       bool
	}{
		{name: "no partitions", partitions: 0},
		{
			name:   "single partition",
			mounts: []Mount{{Device: "/dev/sdb1", MountPoint: "/media/a", FSType: "vfat", Options: []string{"ro", "nosuid"}}},
			stats:  map[string][2]uint64{"/media/a": {1000, 400}},
			total:  1000, used: 600, free: 400, partitions: 1, readOnlyFirst: true,
		},
		{
			name: "two partitions",
			mounts: []Mount{
				{Device: "/dev/sdb1", MountPoint: "/media/a", FSType: "vfat"},
				{Device: "/dev/sda1", MountPoint: "/", FSType: "ext4"},
				{Device: "/dev/sdb2", MountPoint: "/media/b", FSType: "ext4"},
			},
			stats: map[string][2]uint64{"/media/a": {1000, 400}, "/media/b": {3000, 2500}, "/": {9, 9}},
			total: 4000, used: 1100, free: 2900, partitions: 2,
		},
		{
			name: "sibling device name not matched",
			mounts: []Mount{
				{Device: "/dev/sdbb1", MountPoint: "/media/other", FSType: "vfat"},
				{Device: "/dev/sdb1", MountPoint: "/media/a", FSType: "vfat"},
			},
			stats: map[string][2]uint64{"/media/a": {1000, 400}, "/media/other": {5000, 5000}},
			total: 1000, used: 600, free: 400, partitions: 1,
		},
		{
			name:   "free clamped to total",
			mounts: []Mount{{Device: "/dev/sdb1", MountPoint: "/media/a", FSType: "vfat"}},
			stats:  map[string][2]uint64{"/media/a": {100, 150}},
			total:  100, used: 0, free: 100, partitions: 1,
		},
	}

	for _, tc := range cases {
		src := &fakeSource{
			devices: []BlockDevice{usbDevice("sdb")},
			attrs:   map[string]map[string]string{"sdb": identity(map[string]string{AttrRemovable: "1"})},
			mounts:  tc.mounts,
			stats:   tc.stats,
		}
		disks := NewBuilder(src, logging.Discard()).Build()
		if len(disks) != 1 {
			t.Fatalf("%s: expected one disk", tc.name)
		}
		d := disks[0]
		if len(d.Partitions) != tc.partitions {
			t.Fatalf("%s: partitions = %d, want %d", tc.name, len(d.Partitions), tc.partitions)
		}
		if d.TotalSpace != tc.total || d.UsedSpace != tc.used || d.FreeSpace != tc.free {
			t.Fatalf("%s: capacity %d/%d/%d, want %d/%d/%d", tc.name,
				d.TotalSpace, d.UsedSpace, d.FreeSpace, tc.total, tc.used, tc.free)
		}
		if len(d.Partitions) > 0 && d.UsedSpace+d.FreeSpace != d.TotalSpace {
			t.Fatalf("%s: used+free != total", tc.name)
		}
		for _, p := range d.Partitions {
			if p.Free > p.Total {
				t.Fatalf("%s: partition %s free > total", tc.name, p.Name)
			}
		}
		if tc.readOnlyFirst && !d.Partitions[0].ReadOnly {
			t.Fatalf("%s: ro option not detected", tc.name)
		}
	}
}

func TestBuildPlatformFailureYieldsEmpty(t *testing.T) {
	src := &fakeSource{listErr: errors.New("sysfs gone")}
	disks := NewBuilder(src, logging.Discard()).Build()
	if disks == nil || len(disks) != 0 {
		t.Fatalf("expected empty, non-nil inventory, got %#v", disks)
	}
}

func TestBuildExcludedAndBusyDevicesAreNotTouched(t *testing.T) {
	src := &fakeSource{
		devices: []BlockDevice{usbDevice("sdb"), usbDevice("sdc"), usbDevice("sdd")},
		attrs: map[string]map[string]string{
			"sdb": identity(nil),
			"sdc": identity(nil),
			"sdd": identity(nil),
		},
	}
	b := NewBuilder(src, logging.Discard())
	b.Exclude("/dev/sdc")
	b.SkipBusy(func(p string) bool { return p == "/dev/sdd" })

	disks := b.Build()
	if len(disks) != 1 || disks[0].DevicePath != "/dev/sdb" {
		t.Fatalf("unexpected inventory %+v", disks)
	}
	if src.attrHits["sdc"] != 0 || src.attrHits["sdd"] != 0 {
		t.Fatalf("excluded or busy devices were queried: %v", src.attrHits)
	}
}

func TestBuildReadsOptionalVendorAndSize(t *testing.T) {
	src := &fakeSource{
		devices: []BlockDevice{usbDevice("sdb")},
		attrs: map[string]map[string]string{
			"sdb": identity(map[string]string{AttrManufacturer: "SanDisk", AttrSize: "2048"}),
		},
	}
	disks := NewBuilder(src, logging.Discard()).Build()
	if len(disks) != 1 {
		t.Fatalf("expected one disk")
	}
	if disks[0].Vendor != "SanDisk" || disks[0].SizeBytes != 2048*512 {
		t.Fatalf("optional attributes not read: %+v", disks[0])
	}
	if got := disks[0].Label(); got != "/dev/sdb SanDisk Cruzer Blade [Unknown]" {
		t.Fatalf("Label() = %q", got)
	}
}

func TestBelongsTo(t *testing.T) {
	cases := []struct {
		node, disk string
		want       bool
	}{
		{"/dev/sda", "/dev/sda", true},
		{"/dev/sda1", "/dev/sda", true},
		{"/dev/sda15", "/dev/sda", true},
		{"/dev/sdaa1", "/dev/sda", false},
		{"/dev/sdb1", "/dev/sda", false},
		{"/dev/sdap1", "/dev/sda", false},
		{"/dev/nvme0n1p1", "/dev/nvme0n1", true},
		{"/dev/nvme0n10", "/dev/nvme0n1", false},
		{"/dev/nvme0n1p", "/dev/nvme0n1", false},
		{"/dev/mmcblk0p2", "/dev/mmcblk0", true},
		{"/dev/mmcblk01", "/dev/mmcblk0", false},
	}
	for _, tc := range cases {
		if got := belongsTo(tc.node, tc.disk); got != tc.want {
			t.Fatalf("belongsTo(%q, %q) = %v, want %v", tc.node, tc.disk, got, tc.want)
		}
	}
}
