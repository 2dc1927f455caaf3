package disk

// DiskType classifies a device for display and wipe planning
type DiskType int

const (
	TypeUnknown DiskType = iota
	TypeHDD
	TypeSSD
	TypeRemovable
	TypePartition
	TypeRAID
)

func (t DiskType) String() string {
	switch t {
	case TypeHDD:
		return "HDD"
	case TypeSSD:
		return "SSD"
	case TypeRemovable:
		return "Removable"
	case TypePartition:
		return "Partition"
	case TypeRAID:
		return "RAID"
	default:
		return "Unknown"
	}
}

// Partition is a mounted filesystem that belongs to a Disk.
type Partition struct {
	Name       string
	MountPoint string
	FileSystem string
	Total      uint64
	Free       uint64
	ReadOnly   bool
}

// Disk is one external storage device as seen by a single enumeration pass.
// Values are never mutated after the Builder returns them.
type Disk struct {
	DevicePath      string
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	Type            DiskType
	Partitions      []Partition
	SizeBytes       uint64 // raw capacity, 0 if the platform does not report it
	TotalSpace      uint64
	UsedSpace       uint64
	FreeSpace       uint64
}

// Label returns a one-line description used in lists.
func (d Disk) Label() string {
	name := d.Model
	if d.Vendor != "" {
		name = d.Vendor + " " + d.Model
	}
	return d.DevicePath + " " + name + " [" + d.Type.String() + "]"
}

// ResolveType applies the classification policy: removable wins, then the
// rotational flag decides HDD or SSD, and an unreadable rotational flag
// yields Unknown.
func ResolveType(removable, rotational, rotationalReadable bool) DiskType {
	if removable {
		return TypeRemovable
	}
	if !rotationalReadable {
		return TypeUnknown
	}
	if rotational {
		return TypeHDD
	}
	return TypeSSD
}
