// Package fs wraps the small set of filesystem calls the local backend
// needs, so that platform-specific behavior (if any is ever added) has one
// place to live rather than being scattered across backend/local.
package fs

import "os"

// Open opens name for reading.
func Open(name string) (*os.File, error) {
	return os.Open(name)
}

// Stat returns file info for name, following symlinks.
func Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Lstat returns file info for name, without following symlinks.
func Lstat(name string) (os.FileInfo, error) {
	return os.Lstat(name)
}

// MkdirAll creates a directory and all necessary parents.
func MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes a single file or empty directory.
func Remove(name string) error {
	return os.Remove(name)
}

// RemoveAll removes a path and any children it contains.
func RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Chmod changes the mode of name.
func Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}
