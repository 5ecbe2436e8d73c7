package repository

import crand "crypto/rand"

// readRandom fills buf with cryptographically random bytes. Used only for
// header padding, where the values are never interpreted, so a short read
// from the CSPRNG is acceptable to ignore.
func readRandom(buf []byte) error {
	_, err := crand.Read(buf)
	return err
}
