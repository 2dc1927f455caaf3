//go:build !unix

package rawio

func isTransient(err error) bool {
	return false
}
