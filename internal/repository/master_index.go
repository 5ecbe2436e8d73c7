package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// MasterIndex is the in-memory union of every finalized index plus a set of
// pending blob IDs not yet covered by any index: blobs queued in a packer
// but not yet packed. Reads (Contains, Lookup) may proceed concurrently;
// writes (AddPendingBlob, AddPack, Rewrite, Save) take the exclusive lock.
// The lock is never held across backend I/O.
type MasterIndex struct {
	mu sync.RWMutex

	finalized []*Index
	current   *Index // pending, accepting new packs; nil until first AddPack

	pendingBlobs objects.BlobSet
}

// NewMasterIndex returns an empty MasterIndex.
func NewMasterIndex() *MasterIndex {
	return &MasterIndex{pendingBlobs: objects.NewBlobSet()}
}

// Contains reports whether id/t is already known to the repository, either
// indexed in a finalized index or queued as a pending blob awaiting packing.
func (mi *MasterIndex) Contains(t objects.BlobType, id objects.ID) bool {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	if mi.pendingBlobs.Has(objects.BlobHandle{ID: id, Type: t}) {
		return true
	}
	for _, idx := range mi.finalized {
		if _, ok := idx.Lookup(t, id); ok {
			return true
		}
	}
	return false
}

// Lookup searches every finalized index for the location of blob id/t.
func (mi *MasterIndex) Lookup(t objects.BlobType, id objects.ID) (objects.PackedBlob, bool) {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	for _, idx := range mi.finalized {
		if pb, ok := idx.Lookup(t, id); ok {
			return pb, true
		}
	}
	return objects.PackedBlob{}, false
}

// AddPendingBlob records that id/t has been claimed by a caller about to
// pack it. It returns true the first time id/t is recorded, false if
// another caller already claimed it.
func (mi *MasterIndex) AddPendingBlob(t objects.BlobType, id objects.ID) bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	h := objects.BlobHandle{ID: id, Type: t}
	if mi.pendingBlobs.Has(h) {
		return false
	}
	mi.pendingBlobs.Insert(h)
	return true
}

// AddPack records a freshly flushed pack's descriptors, removing the blobs
// it now covers from the pending set, and returns the raw/encoded byte
// sizes of any index metadata written as a side effect of rotation.
func (mi *MasterIndex) AddPack(ctx context.Context, be backend.Backend, codec *crypto.Key, packID objects.ID, descs []PackedBlobDescriptor) (raw, encoded int, err error) {
	mi.mu.Lock()

	if mi.current == nil {
		mi.current = NewIndex()
	}
	mi.current.AddPack(packID, descs)

	for _, d := range descs {
		t := objects.DataBlob
		if d.Kind == descriptorTree {
			t = objects.TreeBlob
		}
		delete(mi.pendingBlobs, objects.BlobHandle{ID: d.ID, Type: t})
	}

	full := mi.current.blobCount() >= BlobsPerIndexFile || time.Since(mi.current.created) >= IndexFlushTimeout
	var toSave *Index
	if full {
		toSave = mi.current
		mi.finalized = append(mi.finalized, toSave)
		mi.current = nil
	}
	mi.mu.Unlock()

	if toSave == nil {
		return 0, 0, nil
	}

	rawBytes, err := toSave.MarshalJSON()
	if err != nil {
		return 0, 0, err
	}
	if err := saveIndex(ctx, be, codec, toSave); err != nil {
		return 0, 0, err
	}
	encodedBytes := crypto.Encode(codec, rawBytes)
	return len(rawBytes), len(encodedBytes), nil
}

// Save finalizes and saves every pending index, including the current one
// under construction even if it hasn't reached the rotation threshold.
func (mi *MasterIndex) Save(ctx context.Context, be backend.Backend, codec *crypto.Key) error {
	mi.mu.Lock()
	var pending []*Index
	if mi.current != nil {
		pending = append(pending, mi.current)
		mi.finalized = append(mi.finalized, mi.current)
		mi.current = nil
	}
	for _, idx := range mi.finalized {
		if idx.IsPending() {
			pending = append(pending, idx)
		}
	}
	mi.mu.Unlock()

	for _, idx := range pending {
		if err := saveIndex(ctx, be, codec, idx); err != nil {
			return errors.Wrap(err, "save index")
		}
	}
	return nil
}

// IDs returns the set of finalized index IDs, used by GC to identify stale
// index files once the master index has been rewritten.
func (mi *MasterIndex) IDs() objects.IDSet {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	s := objects.NewIDSet()
	for _, idx := range mi.finalized {
		if !idx.IsPending() {
			s.Insert(idx.ID())
		}
	}
	return s
}

// Rewrite drops every entry referencing a pack in obsolete from every
// finalized index, turning those indexes pending again so a subsequent Save
// writes new index files that omit the obsolete packs.
func (mi *MasterIndex) Rewrite(obsolete objects.IDSet) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	for _, idx := range mi.finalized {
		idx.RemoveBlobsForPacks(obsolete)
	}
}

// Each calls fn once for every blob recorded in any finalized index.
func (mi *MasterIndex) Each(fn func(objects.PackedBlob)) {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	for _, idx := range mi.finalized {
		idx.each(fn)
	}
}

// PackBlobs groups every known blob by the pack that holds it.
func (mi *MasterIndex) PackBlobs() map[objects.ID][]objects.PackedBlob {
	byPack := make(map[objects.ID][]objects.PackedBlob)
	mi.Each(func(pb objects.PackedBlob) {
		byPack[pb.PackID] = append(byPack[pb.PackID], pb)
	})
	return byPack
}

// ReferencedPacks returns the set of pack IDs referenced by any blob across
// every finalized index.
func (mi *MasterIndex) ReferencedPacks() objects.IDSet {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	s := objects.NewIDSet()
	for _, idx := range mi.finalized {
		for id := range idx.packIDSet() {
			s.Insert(id)
		}
	}
	return s
}

// Load reads every index file listed by lister into the master index. Any
// decode error aborts the whole load.
func (mi *MasterIndex) Load(ctx context.Context, be backend.Backend, codec *crypto.Key) error {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	err := be.List(ctx, backend.IndexFile, func(fi backend.FileInfo) error {
		id, err := objects.ParseID(fi.Name)
		if err != nil {
			return errors.Wrapf(err, "index file name %q", fi.Name)
		}
		idx, err := loadIndex(ctx, be, codec, id)
		if err != nil {
			return errors.Wrapf(err, "load index %s", id.Str())
		}
		mi.finalized = append(mi.finalized, idx)
		return nil
	})
	return err
}
