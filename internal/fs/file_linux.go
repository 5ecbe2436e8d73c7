package fs

import (
	"os"

	"golang.org/x/sys/unix"
)

// PreallocateFile preallocates disk space for f so later sequential writes
// don't fragment the file. Best-effort: a failure here never aborts a save.
func PreallocateFile(f *os.File, size int64) error {
	return unix.Fallocate(int(f.Fd()), 0, 0, size)
}
