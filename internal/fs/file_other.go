//go:build !linux

package fs

import "os"

// PreallocateFile is a no-op on platforms without a preallocation syscall
// wired up; the file still grows correctly on write, just not up front.
func PreallocateFile(f *os.File, size int64) error {
	return nil
}
