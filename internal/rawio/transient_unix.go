//go:build unix

package rawio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isTransient reports whether err is an interrupted system call.
func isTransient(err error) bool {
	return errors.Is(err, unix.EINTR)
}
