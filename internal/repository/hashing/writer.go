// Package hashing provides an io.Writer that feeds every byte written to it
// through a hash.Hash as a side effect, so that pack files can be hashed
// while they are being written to the backend instead of in a second pass.
package hashing

import (
	"hash"
	"io"
)

// Writer writes to the underlying io.Writer while updating the hash.
type Writer struct {
	w io.Writer
	h hash.Hash
}

// NewWriter returns a new Writer that writes to w and hashes the bytes with h.
func NewWriter(w io.Writer, h hash.Hash) *Writer {
	return &Writer{
		w: io.MultiWriter(w, h),
		h: h,
	}
}

func (hw *Writer) Write(p []byte) (int, error) {
	return hw.w.Write(p)
}

// Sum returns the hash of the bytes written so far, appending it to b.
func (hw *Writer) Sum(b []byte) []byte {
	return hw.h.Sum(b)
}
