package disk

import "errors"

// ErrAttributeUnavailable is returned by a Source when a device attribute
// cannot be read. The owning device is left out of the inventory.
var ErrAttributeUnavailable = errors.New("attribute unavailable")

// Attribute names understood by every Source implementation.
const (
	AttrRemovable    = "removable"
	AttrRotational   = "queue/rotational"
	AttrSize         = "size"
	AttrManufacturer = "manufacturer"
	AttrProduct      = "product"
	AttrSerial       = "serial"
	AttrVersion      = "version"
)

// BlockDevice is a raw device descriptor reported by the platform.
type BlockDevice struct {
	Name       string // kernel name, e.g. sdb
	DevicePath string // e.g. /dev/sdb
	SysPath    string // canonical hardware path used for the bus ancestry check
}

// Mount is one mounted filesystem.
type Mount struct {
	Device     string
	MountPoint string
	FSType     string
	Options    []string
}

// Source is the platform capability the inventory is built from.
type Source interface {
	ListBlockDevices() ([]BlockDevice, error)
	ReadAttribute(dev BlockDevice, name string) (string, error)
	ListMounts() ([]Mount, error)
	FilesystemStats(path string) (total, free uint64, err error)
}
