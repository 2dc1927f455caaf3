package rawio

import (
	"fmt"
	"io"
	"os"
)

// OpenDevice opens a raw device or image file and reports its addressable
// size in bytes.
func OpenDevice(path string, writable bool) (*os.File, int64, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}

	size, err := deviceSize(f)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to size %s: %w", path, err)
	}
	return f, size, nil
}

// seekSize finds the size by seeking to the end and back.
func seekSize(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}
