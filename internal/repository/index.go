package repository

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// BlobsPerIndexFile is the blob-count threshold at which a pending index is
// finalized and a new one started.
const BlobsPerIndexFile = 65535

// IndexFlushTimeout is the age threshold at which a pending index is
// finalized even if it hasn't reached BlobsPerIndexFile blobs.
const IndexFlushTimeout = 5 * time.Minute

// indexEntry is one blob's location inside a pack, as recorded by an index.
type indexEntry struct {
	packIdx uint32
	offset  uint32
	length  uint32
}

// Index tracks the blobs contained in a set of packs. A new Index starts
// pending (mutable); once finalized it is immutable and has an ID derived
// from its serialized bytes.
type Index struct {
	packs []objects.ID

	data map[objects.ID]indexEntry
	tree map[objects.ID]indexEntry

	pending bool
	id      objects.ID
	created time.Time
}

// NewIndex returns an empty, pending index.
func NewIndex() *Index {
	return &Index{
		data:    make(map[objects.ID]indexEntry),
		tree:    make(map[objects.ID]indexEntry),
		pending: true,
		created: time.Now(),
	}
}

// IsPending reports whether idx still accepts new packs.
func (idx *Index) IsPending() bool {
	return idx.pending
}

// ID returns the index's content-derived ID. Only valid once finalized.
func (idx *Index) ID() objects.ID {
	return idx.id
}

func (idx *Index) mapFor(t objects.BlobType) map[objects.ID]indexEntry {
	if t == objects.TreeBlob {
		return idx.tree
	}
	return idx.data
}

// Lookup returns the pack blob location for id and t, if idx records it.
func (idx *Index) Lookup(t objects.BlobType, id objects.ID) (objects.PackedBlob, bool) {
	e, ok := idx.mapFor(t)[id]
	if !ok {
		return objects.PackedBlob{}, false
	}
	return objects.PackedBlob{
		BlobHandle: objects.BlobHandle{ID: id, Type: t},
		PackID:     idx.packs[e.packIdx],
		Offset:     e.offset,
		Length:     e.length,
	}, true
}

// blobCount returns the total number of blob entries recorded.
func (idx *Index) blobCount() int {
	return len(idx.data) + len(idx.tree)
}

// AddPack records every descriptor in descs as living in pack packID,
// appended at the given byte offsets (computed from descs in order).
func (idx *Index) AddPack(packID objects.ID, descs []PackedBlobDescriptor) {
	packIdx := uint32(len(idx.packs))
	idx.packs = append(idx.packs, packID)

	offsets := offsetsOf(descs)
	for i, d := range descs {
		t := objects.DataBlob
		if d.Kind == descriptorTree {
			t = objects.TreeBlob
		}
		idx.mapFor(t)[d.ID] = indexEntry{packIdx: packIdx, offset: offsets[i], length: d.Length}
	}
}

// RemoveBlobsForPacks drops every entry belonging to a pack in obsolete.
// Index becomes pending again, since its serialized form changes.
func (idx *Index) RemoveBlobsForPacks(obsolete objects.IDSet) {
	removeFrom := func(m map[objects.ID]indexEntry) {
		for id, e := range m {
			if obsolete.Has(idx.packs[e.packIdx]) {
				delete(m, id)
			}
		}
	}
	removeFrom(idx.data)
	removeFrom(idx.tree)
	idx.pending = true
	idx.id = objects.ID{}
}

// each calls fn once for every blob this index records, in no particular
// order.
func (idx *Index) each(fn func(objects.PackedBlob)) {
	emit := func(m map[objects.ID]indexEntry, t objects.BlobType) {
		for id, e := range m {
			fn(objects.PackedBlob{
				BlobHandle: objects.BlobHandle{ID: id, Type: t},
				PackID:     idx.packs[e.packIdx],
				Offset:     e.offset,
				Length:     e.length,
			})
		}
	}
	emit(idx.data, objects.DataBlob)
	emit(idx.tree, objects.TreeBlob)
}

// packIDSet returns the set of pack IDs this index still references.
func (idx *Index) packIDSet() objects.IDSet {
	s := objects.NewIDSet()
	for id := range idx.data {
		s.Insert(idx.packs[idx.data[id].packIdx])
	}
	for id := range idx.tree {
		s.Insert(idx.packs[idx.tree[id].packIdx])
	}
	return s
}

// wirePack/wireBlob/wireIndex mirror the JSON shape of an on-disk index
// file (§6.2): { "packs": [ { "id", "blobs": [ {id,type,offset,length} ] } ] }.
type wireBlob struct {
	ID     objects.ID `json:"id"`
	Type   string     `json:"type"`
	Offset uint32     `json:"offset"`
	Length uint32     `json:"length"`
}

type wirePack struct {
	ID    objects.ID `json:"id"`
	Blobs []wireBlob `json:"blobs"`
}

type wireIndex struct {
	Packs []wirePack `json:"packs"`
}

func parseWireBlobType(s string) (objects.BlobType, error) {
	switch s {
	case "data":
		return objects.DataBlob, nil
	case "tree":
		return objects.TreeBlob, nil
	default:
		return 0, errors.Errorf("unknown blob type %q", s)
	}
}

// MarshalJSON renders an Index in the on-disk representation, grouping
// blobs by the pack that holds them.
func (idx *Index) MarshalJSON() ([]byte, error) {
	byPack := make([]wirePack, len(idx.packs))
	for i, id := range idx.packs {
		byPack[i] = wirePack{ID: id}
	}

	appendEntries := func(m map[objects.ID]indexEntry, t objects.BlobType) {
		for id, e := range m {
			byPack[e.packIdx].Blobs = append(byPack[e.packIdx].Blobs, wireBlob{
				ID: id, Type: t.String(), Offset: e.offset, Length: e.length,
			})
		}
	}
	appendEntries(idx.data, objects.DataBlob)
	appendEntries(idx.tree, objects.TreeBlob)

	return json.Marshal(wireIndex{Packs: byPack})
}

// decodeIndex parses the on-disk JSON shape into a finalized Index.
func decodeIndex(raw []byte, id objects.ID) (*Index, error) {
	var w wireIndex
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Wrap(err, "decode index")
	}

	idx := &Index{
		data:    make(map[objects.ID]indexEntry),
		tree:    make(map[objects.ID]indexEntry),
		pending: false,
		id:      id,
	}
	for _, p := range w.Packs {
		packIdx := uint32(len(idx.packs))
		idx.packs = append(idx.packs, p.ID)
		for _, b := range p.Blobs {
			t, err := parseWireBlobType(b.Type)
			if err != nil {
				return nil, err
			}
			idx.mapFor(t)[b.ID] = indexEntry{packIdx: packIdx, offset: b.Offset, length: b.Length}
		}
	}
	return idx, nil
}

// saveIndex finalizes idx (if still pending) and writes it via temp+rename
// under the index/ directory, encoded with codec.
func saveIndex(ctx context.Context, be backend.Backend, codec *crypto.Key, idx *Index) error {
	raw, err := idx.MarshalJSON()
	if err != nil {
		return err
	}
	id := objects.Hash(raw)
	encoded := crypto.Encode(codec, raw)

	h := backend.Handle{Type: backend.IndexFile, Name: id.String(), IsMetadata: true}
	if err := be.Save(ctx, h, backend.NewByteReader(encoded, be.Hasher())); err != nil {
		return err
	}

	idx.pending = false
	idx.id = id
	return nil
}

// loadIndex loads and decodes the index file named id.
func loadIndex(ctx context.Context, be backend.Backend, codec *crypto.Key, id objects.ID) (*Index, error) {
	h := backend.Handle{Type: backend.IndexFile, Name: id.String(), IsMetadata: true}

	var encoded []byte
	err := be.Load(ctx, h, 0, 0, func(rd io.Reader) error {
		data, err := io.ReadAll(rd)
		if err != nil {
			return err
		}
		encoded = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := crypto.Decode(codec, encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode index file")
	}

	return decodeIndex(raw, id)
}
