//go:build unix

package security

import "golang.org/x/sys/unix"

// IsRoot reports whether the process runs with effective uid 0.
func IsRoot() bool {
	return unix.Geteuid() == 0
}
