package repository

import (
	"encoding/binary"

	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// trailerLen is the width of the header-length trailer appended to every
// pack file.
const trailerLen = 4

// packEntry is one blob queued in a Packer, already encoded by the caller.
type packEntry struct {
	id      objects.ID
	kind    objects.BlobType
	payload []byte
}

// Packer accumulates encoded blob payloads in memory until it is flushed
// into a single pack file. It is not safe for concurrent use; callers
// serialize access with their own per-kind lock.
type Packer struct {
	entries []packEntry
	size    uint64
}

// NewPacker returns an empty Packer.
func NewPacker() *Packer {
	return &Packer{}
}

// AddBlob appends an already-encoded payload to the packer. The caller is
// responsible for having encoded data before calling this; the packer never
// re-encodes.
func (p *Packer) AddBlob(id objects.ID, kind objects.BlobType, payload []byte) {
	p.entries = append(p.entries, packEntry{id: id, kind: kind, payload: payload})
	p.size += uint64(len(payload))
}

// Size returns the sum of the encoded payload lengths queued so far.
func (p *Packer) Size() uint64 {
	return p.size
}

// IsEmpty reports whether the packer holds no blobs.
func (p *Packer) IsEmpty() bool {
	return len(p.entries) == 0
}

// NumBlobs returns the number of real (non-padding) blobs queued.
func (p *Packer) NumBlobs() int {
	return len(p.entries)
}

// FlushedPack is the result of flushing a non-empty Packer: the full,
// self-contained pack file bytes, its content-derived ID, the descriptors
// of every real blob it holds (in payload order) and the size of the
// encoded header, reported separately so callers can account it against
// metadata totals.
type FlushedPack struct {
	Data        []byte
	ID          objects.ID
	Descriptors []PackedBlobDescriptor
	HeaderSize  int
}

// Flush serializes every queued blob into a single pack file: payloads
// first, then an encoded, padded header, then a 4-byte trailer giving the
// encoded header's length. It resets the packer's state. Flush returns nil
// if the packer was empty.
func (p *Packer) Flush(codec *crypto.Key) (*FlushedPack, error) {
	if p.IsEmpty() {
		return nil, nil
	}

	entries := p.entries
	p.entries = nil
	p.size = 0

	descs := make([]PackedBlobDescriptor, len(entries))
	var payload []byte
	for i, e := range entries {
		descs[i] = PackedBlobDescriptor{ID: e.id, Kind: descriptorKindOf(e.kind), Length: uint32(len(e.payload))}
		payload = append(payload, e.payload...)
	}

	rawHeader := generateHeader(descs)
	encodedHeader := crypto.Encode(codec, rawHeader)

	buf := make([]byte, 0, len(payload)+len(encodedHeader)+trailerLen)
	buf = append(buf, payload...)
	buf = append(buf, encodedHeader...)

	var trailer [trailerLen]byte
	binary.LittleEndian.PutUint32(trailer[:], uint32(len(encodedHeader)))
	buf = append(buf, trailer[:]...)

	return &FlushedPack{
		Data:        buf,
		ID:          objects.Hash(buf),
		Descriptors: descs,
		HeaderSize:  len(encodedHeader) + trailerLen,
	}, nil
}
