//go:build !unix

package arena

// reserve allocates the region on the Go heap when mmap is unavailable.
func reserve(size int) ([]byte, func() error, error) {
	data := make([]byte, size)
	return data, func() error { return nil }, nil
}
