package repository

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// MaxPackSize is the accumulated encoded-payload threshold at which a
// packer is flushed into a pack file.
const MaxPackSize = 16 * 1024 * 1024

// PackSaverConcurrency is the default number of concurrent pack-writing
// workers started by a Repository.
const PackSaverConcurrency = 5

var _ objects.Repository = (*Repository)(nil)

// Repository is the concrete, on-disk implementation of objects.Repository:
// it owns the backend connection, the encryption key, the in-memory
// packers accumulating not-yet-flushed blobs, the pack saver worker pool
// and the master index.
type Repository struct {
	be  backend.Backend
	key *crypto.Key
	cfg objects.Config

	index *MasterIndex

	dataMu     sync.Mutex
	dataPacker *Packer
	treeMu     sync.Mutex
	treePacker *Packer

	saver *PackSaver
}

// Create initializes a fresh, empty repository on be: it writes the
// manifest and creates a master key wrapped by password. Create fails if
// the backend already holds a manifest.
func Create(ctx context.Context, be backend.Backend, password string, kdfParams crypto.Params) (*Repository, error) {
	master := crypto.NewRandomKey()

	if _, err := createKey(ctx, be, password, master, kdfParams); err != nil {
		return nil, errors.Wrap(err, "create key")
	}

	m, err := writeManifest(ctx, be, master)
	if err != nil {
		return nil, errors.Wrap(err, "write manifest")
	}

	repo := newRepository(be, master, objects.Config{
		Version:           m.Version,
		ID:                m.ID,
		ChunkerPolynomial: m.ChunkerPol,
	})
	return repo, nil
}

// Open unlocks an existing repository on be with password and loads every
// index file into the master index.
func Open(ctx context.Context, be backend.Backend, password string) (*Repository, error) {
	master, err := openKey(ctx, be, password)
	if err != nil {
		return nil, err
	}

	m, err := readManifest(ctx, be, master)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}

	repo := newRepository(be, master, objects.Config{
		Version:           m.Version,
		ID:                m.ID,
		ChunkerPolynomial: m.ChunkerPol,
	})

	if err := repo.index.Load(ctx, be, master); err != nil {
		return nil, errors.Wrap(err, "load indexes")
	}

	return repo, nil
}

func newRepository(be backend.Backend, key *crypto.Key, cfg objects.Config) *Repository {
	return &Repository{
		be:         be,
		key:        key,
		cfg:        cfg,
		index:      NewMasterIndex(),
		dataPacker: NewPacker(),
		treePacker: NewPacker(),
		saver:      NewPackSaver(be, PackSaverConcurrency),
	}
}

// Config returns the repository's static configuration.
func (r *Repository) Config() objects.Config {
	return r.cfg
}

// Connections reports the backend's maximum concurrent operations.
func (r *Repository) Connections() uint {
	return r.be.Connections()
}

// Backend returns the backend this repository is layered on, for callers
// (such as the consistency checker) that need to inspect storage directly.
func (r *Repository) Backend() backend.Backend {
	return r.be
}

// Key returns the repository's master key.
func (r *Repository) Key() *crypto.Key {
	return r.key
}

// Index returns the repository's master index.
func (r *Repository) Index() *MasterIndex {
	return r.index
}

func (r *Repository) packerFor(t objects.BlobType) (*Packer, *sync.Mutex) {
	if t == objects.TreeBlob {
		return r.treePacker, &r.treeMu
	}
	return r.dataPacker, &r.dataMu
}

// LookupBlobSize reports the encoded size recorded for id/t in the index,
// without reading the blob. It returns false if the blob is not (yet)
// indexed, which is also true for blobs still sitting in an open packer.
func (r *Repository) LookupBlobSize(t objects.BlobType, id objects.ID) (int, bool) {
	pb, ok := r.index.Lookup(t, id)
	if !ok {
		return 0, false
	}
	return crypto.PlaintextLength(int(pb.Length)), true
}

// LoadBlob loads and verifies the plaintext of blob id/t, appending it to
// buf if buf has spare capacity.
func (r *Repository) LoadBlob(ctx context.Context, t objects.BlobType, id objects.ID, buf []byte) ([]byte, error) {
	pb, ok := r.index.Lookup(t, id)
	if !ok {
		return nil, errors.Errorf("blob %s not found in index", id.Str())
	}

	plain, err := LoadPackedBlob(ctx, r.be, r.key, pb)
	if err != nil {
		return nil, err
	}

	out := append(buf, plain...)
	return out, nil
}

// SaveBlob stores data under the blob kind t. If id is the zero ID, it is
// derived as the content hash of data. Unless storeDuplicate is set, a
// blob already indexed or pending under id is deduplicated: the call
// returns immediately with known=true and no data is packed again.
func (r *Repository) SaveBlob(ctx context.Context, t objects.BlobType, data []byte, id objects.ID, storeDuplicate bool) (objects.ID, bool, int, error) {
	if id.IsNull() {
		id = objects.Hash(data)
	}

	if !storeDuplicate {
		if r.index.Contains(t, id) || !r.index.AddPendingBlob(t, id) {
			return id, true, len(data), nil
		}
	}

	payload := crypto.Encode(r.key, data)

	packer, mu := r.packerFor(t)
	mu.Lock()
	packer.AddBlob(id, t, payload)
	full := packer.Size() > MaxPackSize
	mu.Unlock()

	if full {
		if _, _, err := r.flushPacker(ctx, t); err != nil {
			return objects.ID{}, false, 0, err
		}
	}

	return id, false, len(data), nil
}

// flushPacker flushes the packer for blob kind t, submits the resulting
// pack to the pack saver and records it in the master index. It returns
// the (raw, encoded) sizes of any index metadata written as a side effect.
func (r *Repository) flushPacker(ctx context.Context, t objects.BlobType) (int, int, error) {
	packer, mu := r.packerFor(t)

	mu.Lock()
	flushed, err := packer.Flush(r.key)
	mu.Unlock()
	if err != nil {
		return 0, 0, err
	}
	if flushed == nil {
		return 0, 0, nil
	}

	if err := r.saver.Save(ctx, flushed.Data, flushed.ID); err != nil {
		return 0, 0, err
	}

	return r.index.AddPack(ctx, r.be, r.key, flushed.ID, flushed.Descriptors)
}

// Flush flushes both packers and saves every pending index file. It
// returns the (raw, encoded) byte totals of index metadata written.
func (r *Repository) Flush(ctx context.Context) (int, int, error) {
	var rawTotal, encodedTotal int

	for _, t := range []objects.BlobType{objects.DataBlob, objects.TreeBlob} {
		raw, encoded, err := r.flushPacker(ctx, t)
		if err != nil {
			return rawTotal, encodedTotal, err
		}
		rawTotal += raw
		encodedTotal += encoded
	}

	if err := r.index.Save(ctx, r.be, r.key); err != nil {
		return rawTotal, encodedTotal, err
	}

	return rawTotal, encodedTotal, nil
}

// WithBlobUploader runs fn with this Repository as the uploader (SaveBlob
// already buffers into in-memory packers and hands finished packs to the
// concurrent pack-saver pool), then flushes before returning so that every
// blob fn saved is durably packed.
func (r *Repository) WithBlobUploader(ctx context.Context, fn func(ctx context.Context, uploader objects.BlobSaverWithAsync) error) error {
	if err := fn(ctx, r); err != nil {
		return err
	}
	_, _, err := r.Flush(ctx)
	return err
}

// SaveUnpacked writes data as a whole file addressed by its content hash
// under type t, bypassing the packer. Used for snapshots, indexes and keys.
func (r *Repository) SaveUnpacked(ctx context.Context, t objects.FileType, data []byte) (objects.ID, error) {
	id := objects.Hash(data)
	encoded := crypto.Encode(r.key, data)

	h := backend.Handle{Type: t, Name: id.String(), IsMetadata: true}
	if err := r.be.Save(ctx, h, backend.NewByteReader(encoded, r.be.Hasher())); err != nil {
		return objects.ID{}, err
	}
	return id, nil
}

// LoadUnpacked reads and decodes the whole file of type t named id.
func (r *Repository) LoadUnpacked(ctx context.Context, t objects.FileType, id objects.ID) ([]byte, error) {
	h := backend.Handle{Type: t, Name: id.String(), IsMetadata: true}
	return loadUnpackedBytes(ctx, r.be, r.key, h)
}

// List enumerates the names of every file of type t.
func (r *Repository) List(ctx context.Context, t objects.FileType) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = r.be.List(ctx, t, func(fi backend.FileInfo) error {
			if !yield(fi.Name) {
				return errStopList
			}
			return nil
		})
	}
}

// Find searches for exactly one file of type t whose name starts with
// prefix.
func (r *Repository) Find(ctx context.Context, t objects.FileType, prefix string) (objects.ID, error) {
	return objects.FindFile(ctx, r, t, prefix)
}

// LoadSnapshot loads and decodes the snapshot file named id.
func (r *Repository) LoadSnapshot(ctx context.Context, id objects.ID) ([]byte, error) {
	return r.LoadUnpacked(ctx, objects.SnapshotFile, id)
}

// RemoveSnapshot deletes the snapshot file named id. This only drops the
// snapshot's root reference; garbage collection reclaims storage.
func (r *Repository) RemoveSnapshot(ctx context.Context, id objects.ID) error {
	h := backend.Handle{Type: backend.SnapshotFile, Name: id.String(), IsMetadata: true}
	return r.be.Remove(ctx, h)
}

var errStopList = errors.New("list stopped")

func loadUnpackedBytes(ctx context.Context, be backend.Backend, key *crypto.Key, h backend.Handle) ([]byte, error) {
	var encoded []byte
	err := be.Load(ctx, h, 0, 0, func(rd io.Reader) error {
		data, err := io.ReadAll(rd)
		encoded = data
		return err
	})
	if err != nil {
		return nil, err
	}

	return crypto.Decode(key, encoded)
}

