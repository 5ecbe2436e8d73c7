// Package objects implements the content-addressed identifiers and blob
// types shared across the repository: blobs, packs, snapshots, indexes and
// keys are all named by a 32-byte ID, either random (CSPRNG) or derived from
// the digest of their own bytes.
package objects

import (
	"crypto/rand"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/jLantxa/mapache-sub000/internal/errors"
)

// Length is the size of an ID in bytes.
const Length = 32

// ID is a 256-bit content-addressed identifier.
type ID [Length]byte

// ErrNoIDPrefixFound is returned by Find when no name has the given prefix.
var ErrNoIDPrefixFound = errors.New("no ID found")

// ErrMultipleIDMatches is returned by Find when more than one name has the
// given prefix.
var ErrMultipleIDMatches = errors.New("multiple IDs with prefix found")

// Hash computes the content-derived ID of data: the 256-bit BLAKE2b digest.
func Hash(data []byte) ID {
	return ID(blake2b.Sum256(data))
}

// NewRandomID returns a new random ID, read from a CSPRNG.
func NewRandomID() ID {
	id := ID{}
	n, err := rand.Read(id[:])
	if n != Length || err != nil {
		panic("unable to read enough random bytes for new ID")
	}
	return id
}

// ParseID parses s, which must be a 64-character lowercase hex string, as an
// ID.
func ParseID(s string) (ID, error) {
	var id ID

	if len(s) != hex.EncodedLen(Length) {
		return ID{}, errors.Errorf("invalid length for ID %q: %d bytes", s, len(s))
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, errors.Wrap(err, "DecodeString")
	}

	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex representation of id.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Str returns an abbreviated form of id for log messages.
func (id ID) Str() string {
	if id.IsNull() {
		return "[null]"
	}
	return hex.EncodeToString(id[:4])
}

// IsNull returns true if id consists only of zero bytes.
func (id ID) IsNull() bool {
	return id == ID{}
}

// Equal returns whether id and other refer to the same identifier.
func (id ID) Equal(other ID) bool {
	return id == other
}

// MarshalJSON encodes id as a JSON hex string.
func (id ID) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 2+hex.EncodedLen(Length))
	buf[0] = '"'
	hex.Encode(buf[1:], id[:])
	buf[len(buf)-1] = '"'
	return buf, nil
}

// UnmarshalJSON decodes a JSON hex string into id.
func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.Errorf("invalid ID %q", b)
	}
	b = b[1 : len(b)-1]

	if len(b) != hex.EncodedLen(Length) {
		return errors.Errorf("invalid length for ID %q: %d bytes", b, len(b))
	}

	n, err := hex.Decode(id[:], b)
	if err != nil {
		return errors.Wrap(err, "Decode")
	}
	if n != Length {
		return errors.Errorf("invalid length for ID %q: decoded %d bytes", b, n)
	}
	return nil
}

// IDs is an ordered list of IDs.
type IDs []ID

func (ids IDs) Len() int           { return len(ids) }
func (ids IDs) Less(i, j int) bool { return bytesLess(ids[i][:], ids[j][:]) }
func (ids IDs) Swap(i, j int)      { ids[i], ids[j] = ids[j], ids[i] }

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Find searches names (a list of hex-encoded IDs) for exactly one entry that
// starts with prefix. Prefixes shorter than 2 hex chars or longer than the
// full ID are rejected, matching the find() contract in the repository
// directory layout: ambiguous or missing prefixes are both errors.
func Find(names []string, prefix string) (string, error) {
	if len(prefix) < 2 || len(prefix) > hex.EncodedLen(Length) {
		return "", errors.Errorf("invalid prefix length %d", len(prefix))
	}

	match := ""
	for _, name := range names {
		if len(name) < len(prefix) {
			continue
		}
		if name[:len(prefix)] == prefix {
			if match != "" {
				return "", ErrMultipleIDMatches
			}
			match = name
		}
	}

	if match == "" {
		return "", ErrNoIDPrefixFound
	}
	return match, nil
}

// Sort sorts ids in place in ascending lexicographic order.
func Sort(ids IDs) {
	sort.Sort(ids)
}
