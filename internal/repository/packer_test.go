package repository

import (
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

func TestPackerEmptyFlush(t *testing.T) {
	p := NewPacker()
	rtest.Assert(t, p.IsEmpty(), "new packer should be empty")

	flushed, err := p.Flush(crypto.NewRandomKey())
	rtest.OK(t, err)
	rtest.Assert(t, flushed == nil, "flushing an empty packer should return nil")
}

func TestPackerFlushRoundTrip(t *testing.T) {
	key := crypto.NewRandomKey()

	blobs := [][]byte{[]byte("mapache"), []byte("backup"), []byte("file contents")}
	kinds := []objects.BlobType{objects.DataBlob, objects.DataBlob, objects.TreeBlob}

	p := NewPacker()
	ids := make([]objects.ID, len(blobs))
	for i, b := range blobs {
		ids[i] = objects.Hash(b)
		p.AddBlob(ids[i], kinds[i], crypto.Encode(key, b))
	}
	rtest.Equals(t, len(blobs), p.NumBlobs())

	flushed, err := p.Flush(key)
	rtest.OK(t, err)
	rtest.Assert(t, flushed != nil, "flush of a non-empty packer must not be nil")
	rtest.Assert(t, p.IsEmpty(), "packer must be empty after flush")

	rtest.Equals(t, len(blobs), len(flushed.Descriptors))
	for i, d := range flushed.Descriptors {
		rtest.Equals(t, ids[i], d.ID)
	}

	// the trailing 4 bytes must decode to the encoded header length.
	trailer := flushed.Data[len(flushed.Data)-trailerLen:]
	headerLen := int(trailer[0]) | int(trailer[1])<<8 | int(trailer[2])<<16 | int(trailer[3])<<24
	rtest.Equals(t, headerLen, flushed.HeaderSize-trailerLen)
}

func TestGenerateHeaderPadding(t *testing.T) {
	descs := []PackedBlobDescriptor{
		{ID: objects.NewRandomID(), Kind: descriptorData, Length: 10},
		{ID: objects.NewRandomID(), Kind: descriptorTree, Length: 20},
		{ID: objects.NewRandomID(), Kind: descriptorData, Length: 30},
	}

	raw := generateHeader(descs)
	rtest.Equals(t, 0, len(raw)%headerDescriptorLen)

	n := len(raw) / headerDescriptorLen
	rtest.Assert(t, n%HeaderBlobMultiple == 0, "header descriptor count must be padded to a multiple of %d, got %d", HeaderBlobMultiple, n)

	parsed, err := parseHeader(raw)
	rtest.OK(t, err)
	rtest.Equals(t, len(descs), len(parsed))
	for i, d := range descs {
		rtest.Equals(t, d.ID, parsed[i].ID)
		rtest.Equals(t, d.Length, parsed[i].Length)
	}
}

func TestOffsetsOf(t *testing.T) {
	descs := []PackedBlobDescriptor{
		{ID: objects.NewRandomID(), Length: 5},
		{ID: objects.NewRandomID(), Length: 7},
		{ID: objects.NewRandomID(), Length: 3},
	}
	offsets := offsetsOf(descs)
	rtest.Equals(t, []uint32{0, 5, 12}, offsets)
}
