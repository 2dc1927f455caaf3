//go:build !unix

package security

// IsRoot is always false where raw device writes are unsupported.
func IsRoot() bool {
	return false
}
