package repository

import (
	"context"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/backend/mem"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

func flushTestPack(t *testing.T, key *crypto.Key, blobs [][]byte, kinds []objects.BlobType) *FlushedPack {
	t.Helper()
	p := NewPacker()
	for i, b := range blobs {
		p.AddBlob(objects.Hash(b), kinds[i], crypto.Encode(key, b))
	}
	flushed, err := p.Flush(key)
	rtest.OK(t, err)
	return flushed
}

func TestParsePackHeaderAndLoadBlob(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	key := crypto.NewRandomKey()

	blobs := [][]byte{[]byte("alpha"), []byte("beta")}
	kinds := []objects.BlobType{objects.DataBlob, objects.TreeBlob}
	flushed := flushTestPack(t, key, blobs, kinds)

	h := backend.Handle{Type: backend.PackFile, Name: flushed.ID.String()}
	rtest.OK(t, be.Save(ctx, h, backend.NewByteReader(flushed.Data, be.Hasher())))

	descs, err := ParsePackHeader(ctx, be, key, flushed.ID)
	rtest.OK(t, err)
	rtest.Equals(t, len(blobs), len(descs))

	offsets := offsetsOf(descs)
	for i, d := range descs {
		pb := objects.PackedBlob{
			BlobHandle: objects.BlobHandle{ID: d.ID, Type: kinds[i]},
			PackID:     flushed.ID,
			Offset:     offsets[i],
			Length:     d.Length,
		}
		plain, err := LoadPackedBlob(ctx, be, key, pb)
		rtest.OK(t, err)
		rtest.Equals(t, blobs[i], plain)
	}
}

func TestLoadPackedBlobDetectsDigestMismatch(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	key := crypto.NewRandomKey()

	blobs := [][]byte{[]byte("only one")}
	kinds := []objects.BlobType{objects.DataBlob}
	flushed := flushTestPack(t, key, blobs, kinds)

	h := backend.Handle{Type: backend.PackFile, Name: flushed.ID.String()}
	rtest.OK(t, be.Save(ctx, h, backend.NewByteReader(flushed.Data, be.Hasher())))

	pb := objects.PackedBlob{
		BlobHandle: objects.BlobHandle{ID: objects.NewRandomID(), Type: objects.DataBlob},
		PackID:     flushed.ID,
		Offset:     0,
		Length:     flushed.Descriptors[0].Length,
	}
	_, err := LoadPackedBlob(ctx, be, key, pb)
	rtest.Assert(t, err != nil, "a blob claiming the wrong ID must fail digest verification")
}
