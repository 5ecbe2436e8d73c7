package objects

import "context"

// BlobType classifies the payload stored behind a blob ID.
type BlobType uint8

const (
	// DataBlob holds a chunk of file content.
	DataBlob BlobType = iota
	// TreeBlob holds the JSON-encoded listing of a directory.
	TreeBlob
)

func (t BlobType) String() string {
	switch t {
	case DataBlob:
		return "data"
	case TreeBlob:
		return "tree"
	default:
		return "invalid"
	}
}

// BlobHandle identifies a blob by its ID and the kind of data it holds; the
// same 256-bit digest could in principle collide across the two kinds, so
// every lookup carries both.
type BlobHandle struct {
	ID   ID
	Type BlobType
}

func (h BlobHandle) String() string {
	return h.Type.String() + "/" + h.ID.Str()
}

// PackedBlob describes where a blob's ciphertext lives inside a pack file.
type PackedBlob struct {
	BlobHandle
	PackID ID
	Offset uint32
	Length uint32
}

// Blob is a PackedBlob annotated with the plaintext length, as recorded in
// the pack header so that it can be reported without downloading the blob.
type Blob struct {
	BlobHandle
	Length             uint32
	UncompressedLength uint32
}

// BlobLoader reads a blob's plaintext by content hash, appending it to buf
// when buf has enough capacity.
type BlobLoader interface {
	LoadBlob(ctx context.Context, t BlobType, id ID, buf []byte) ([]byte, error)
}

// BlobSaver stores a blob's plaintext, returning the ID it was saved (or
// already existed) under. storeDuplicate forces a write even if a blob with
// the same ID is already pending or present, used by tree rebuilds that must
// not silently dedupe against a blob not yet known to be referenced.
type BlobSaver interface {
	SaveBlob(ctx context.Context, t BlobType, data []byte, id ID, storeDuplicate bool) (newID ID, known bool, size int, err error)
}

// BlobSaverWithAsync is the uploader handed to the callback of
// Repository.WithBlobUploader: a BlobSaver whose writes may be buffered and
// flushed concurrently by a pack uploader goroutine pool rather than
// completing synchronously.
type BlobSaverWithAsync = BlobSaver

// Loader is the subset of Repository operations needed to walk trees: load
// blob plaintext, look up a blob's size without downloading it, and learn
// how much backend parallelism is available so tree-loading worker pools can
// size themselves.
type Loader interface {
	BlobLoader
	Connections() uint
	LookupBlobSize(t BlobType, id ID) (size int, found bool)
}

// FindBlobSet is a set of blob handles, used to accumulate the set of blobs
// reachable from a collection of snapshots during a reachability scan.
type FindBlobSet interface {
	Has(BlobHandle) bool
	Insert(BlobHandle)
}
