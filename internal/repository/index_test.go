package repository

import (
	"context"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/backend/mem"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

func TestIndexAddPackOffsets(t *testing.T) {
	idx := NewIndex()
	packID := objects.NewRandomID()
	dataID := objects.Hash([]byte("one"))
	treeID := objects.Hash([]byte("two"))

	idx.AddPack(packID, []PackedBlobDescriptor{
		{ID: dataID, Kind: descriptorData, Length: 10},
		{ID: treeID, Kind: descriptorTree, Length: 20},
	})

	pb, ok := idx.Lookup(objects.DataBlob, dataID)
	rtest.Assert(t, ok, "data blob must be found")
	rtest.Equals(t, uint32(0), pb.Offset)
	rtest.Equals(t, packID, pb.PackID)

	pb, ok = idx.Lookup(objects.TreeBlob, treeID)
	rtest.Assert(t, ok, "tree blob must be found")
	rtest.Equals(t, uint32(10), pb.Offset)
}

func TestIndexMarshalDecodeRoundTrip(t *testing.T) {
	idx := NewIndex()
	packID := objects.NewRandomID()
	id := objects.Hash([]byte("payload"))
	idx.AddPack(packID, []PackedBlobDescriptor{{ID: id, Kind: descriptorData, Length: 5}})

	raw, err := idx.MarshalJSON()
	rtest.OK(t, err)

	decoded, err := decodeIndex(raw, objects.Hash(raw))
	rtest.OK(t, err)

	pb, ok := decoded.Lookup(objects.DataBlob, id)
	rtest.Assert(t, ok, "blob must survive marshal/decode round trip")
	rtest.Equals(t, packID, pb.PackID)
	rtest.Equals(t, uint32(5), pb.Length)
	rtest.Assert(t, !decoded.IsPending(), "a decoded index must not be pending")
}

func TestIndexRemoveBlobsForPacks(t *testing.T) {
	idx := NewIndex()
	keepPack := objects.NewRandomID()
	dropPack := objects.NewRandomID()
	keepID := objects.Hash([]byte("keep"))
	dropID := objects.Hash([]byte("drop"))

	idx.AddPack(keepPack, []PackedBlobDescriptor{{ID: keepID, Kind: descriptorData, Length: 1}})
	idx.AddPack(dropPack, []PackedBlobDescriptor{{ID: dropID, Kind: descriptorData, Length: 1}})

	idx.RemoveBlobsForPacks(objects.NewIDSet(dropPack))

	_, ok := idx.Lookup(objects.DataBlob, keepID)
	rtest.Assert(t, ok, "blob from a kept pack must still resolve")
	_, ok = idx.Lookup(objects.DataBlob, dropID)
	rtest.Assert(t, !ok, "blob from a removed pack must no longer resolve")
	rtest.Assert(t, idx.IsPending(), "removing blobs must mark the index pending again")
}

func TestSaveAndLoadIndexFile(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	codec := crypto.NewRandomKey()

	idx := NewIndex()
	packID := objects.NewRandomID()
	id := objects.Hash([]byte("stored"))
	idx.AddPack(packID, []PackedBlobDescriptor{{ID: id, Kind: descriptorTree, Length: 8}})

	rtest.OK(t, saveIndex(ctx, be, codec, idx))
	rtest.Assert(t, !idx.IsPending(), "saveIndex must finalize the index")

	loaded, err := loadIndex(ctx, be, codec, idx.ID())
	rtest.OK(t, err)

	pb, ok := loaded.Lookup(objects.TreeBlob, id)
	rtest.Assert(t, ok, "blob must survive a save/load round trip")
	rtest.Equals(t, packID, pb.PackID)
}
