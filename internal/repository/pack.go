// Package repository implements the content-addressed object store: packs,
// the master index, key and manifest files, and the Repository type that
// ties them to a backend.
package repository

import (
	"encoding/binary"

	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// descriptorKind is the on-disk kind byte of a pack header descriptor. It
// extends objects.BlobType with a Padding value that never appears outside a
// pack header.
type descriptorKind uint8

const (
	descriptorData descriptorKind = iota
	descriptorTree
	descriptorPadding
)

func descriptorKindOf(t objects.BlobType) descriptorKind {
	switch t {
	case objects.TreeBlob:
		return descriptorTree
	default:
		return descriptorData
	}
}

// HeaderBlobMultiple is the descriptor-count granularity that every pack
// header is padded to, so that small packs don't reveal their true blob
// count through header size alone.
const HeaderBlobMultiple = 64

// headerDescriptorLen is the fixed, on-disk size of one pack header
// descriptor: a 32-byte blob ID, a 4-byte little-endian length and a 1-byte
// kind.
const headerDescriptorLen = objects.Length + 4 + 1

// PackedBlobDescriptor is one entry of a pack header: the identity of a blob
// stored in the pack, together with the length of its encoded payload.
// Offsets are never stored; they are reconstructed by prefix-summing
// lengths in descriptor order, skipping Padding entries.
type PackedBlobDescriptor struct {
	ID     objects.ID
	Kind   descriptorKind
	Length uint32
}

func (d PackedBlobDescriptor) marshal() []byte {
	buf := make([]byte, headerDescriptorLen)
	copy(buf[0:objects.Length], d.ID[:])
	binary.LittleEndian.PutUint32(buf[objects.Length:objects.Length+4], d.Length)
	buf[objects.Length+4] = byte(d.Kind)
	return buf
}

func unmarshalDescriptor(buf []byte) (PackedBlobDescriptor, error) {
	if len(buf) != headerDescriptorLen {
		return PackedBlobDescriptor{}, errors.Errorf("invalid descriptor length %d", len(buf))
	}
	var d PackedBlobDescriptor
	copy(d.ID[:], buf[0:objects.Length])
	d.Length = binary.LittleEndian.Uint32(buf[objects.Length : objects.Length+4])
	d.Kind = descriptorKind(buf[objects.Length+4])
	return d, nil
}

// generateHeader serializes descs to its fixed-width wire form, padding the
// descriptor count up to a multiple of HeaderBlobMultiple with random
// Padding descriptors so the header length alone does not reveal the real
// blob count.
func generateHeader(descs []PackedBlobDescriptor) []byte {
	total := len(descs)
	if rem := total % HeaderBlobMultiple; rem != 0 {
		total += HeaderBlobMultiple - rem
	}

	buf := make([]byte, 0, total*headerDescriptorLen)
	for _, d := range descs {
		buf = append(buf, d.marshal()...)
	}
	for i := len(descs); i < total; i++ {
		pad := PackedBlobDescriptor{
			ID:     objects.NewRandomID(),
			Kind:   descriptorPadding,
			Length: randomPadLength(),
		}
		buf = append(buf, pad.marshal()...)
	}
	return buf
}

// parseHeader decodes a raw (already-decoded) header block into its
// descriptors, dropping Padding entries and reconstructing each surviving
// descriptor's offset as the running sum of prior non-Padding lengths.
func parseHeader(raw []byte) ([]PackedBlobDescriptor, error) {
	if len(raw)%headerDescriptorLen != 0 {
		return nil, errors.Errorf("pack header length %d is not a multiple of %d", len(raw), headerDescriptorLen)
	}

	n := len(raw) / headerDescriptorLen
	result := make([]PackedBlobDescriptor, 0, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*headerDescriptorLen : (i+1)*headerDescriptorLen]
		d, err := unmarshalDescriptor(chunk)
		if err != nil {
			return nil, err
		}
		if d.Kind == descriptorPadding {
			continue
		}
		result = append(result, d)
	}
	return result, nil
}

// offsetsOf returns the byte offset of each descriptor within the
// concatenated payload section of the pack, in descriptor order.
func offsetsOf(descs []PackedBlobDescriptor) []uint32 {
	offsets := make([]uint32, len(descs))
	var sum uint32
	for i, d := range descs {
		offsets[i] = sum
		sum += d.Length
	}
	return offsets
}

// PackHeaderSize returns the on-disk size of a pack header covering n real
// descriptors, including the random padding every header is rounded up to
// (see HeaderBlobMultiple).
func PackHeaderSize(n int) int {
	total := n
	if rem := total % HeaderBlobMultiple; rem != 0 {
		total += HeaderBlobMultiple - rem
	}
	return total * headerDescriptorLen
}

// ExpectedPackSize returns the total on-disk size of a pack given the blobs
// the index says it contains: payload bytes, the padded header and its
// trailing 4-byte length field.
func ExpectedPackSize(blobs []objects.PackedBlob) int64 {
	var payload int64
	for _, b := range blobs {
		payload += int64(b.Length)
	}
	return payload + int64(PackHeaderSize(len(blobs))) + trailerLen
}

func randomPadLength() uint32 {
	var b [2]byte
	_ = readRandom(b[:])
	return uint32(b[0])<<8 | uint32(b[1])
}
