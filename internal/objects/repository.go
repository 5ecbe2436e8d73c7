package objects

import (
	"context"
	"iter"

	"github.com/restic/chunker"
)

// FileType enumerates the top-level object categories stored directly in the
// repository, addressed by ID rather than packed inside a pack file.
type FileType uint8

const (
	PackFile FileType = iota
	IndexFile
	SnapshotFile
	KeyFile
	LockFile
	ConfigFile
)

func (t FileType) String() string {
	switch t {
	case PackFile:
		return "pack"
	case IndexFile:
		return "index"
	case SnapshotFile:
		return "snapshot"
	case KeyFile:
		return "key"
	case LockFile:
		return "lock"
	case ConfigFile:
		return "config"
	default:
		return "invalid"
	}
}

// Lister enumerates the names of every file of type t stored in the
// repository.
type Lister interface {
	List(ctx context.Context, t FileType) iter.Seq[string]
}

// Handle fully identifies a single file stored in a backend.
type Handle struct {
	Type FileType
	Name string

	// IsMetadata marks a handle that should be routed to a fast storage
	// tier by a tiered (hot/cold) backend, even though its Type alone
	// would otherwise route it to the slow tier.
	IsMetadata bool

	// BT is the kind of blob a pack file's header claims to hold, used by
	// tiered backends to decide whether a pack belongs on the hot tier.
	BT BlobType
}

// LoaderUnpacked reads and writes whole files addressed directly by ID,
// bypassing pack storage: keys, snapshots, indexes and the manifest.
type LoaderUnpacked interface {
	LoadUnpacked(ctx context.Context, t FileType, id ID) ([]byte, error)
	SaveUnpacked(ctx context.Context, t FileType, data []byte) (ID, error)
}

// ListerLoaderUnpacked combines Lister and LoaderUnpacked, the minimum
// surface needed to enumerate and load unpacked files such as snapshots.
type ListerLoaderUnpacked interface {
	Lister
	LoaderUnpacked
}

// FindFile searches the repository for exactly one file of type t whose name
// starts with prefix.
func FindFile(ctx context.Context, be Lister, t FileType, prefix string) (ID, error) {
	match := ""
	for name := range be.List(ctx, t) {
		if len(name) < len(prefix) {
			continue
		}
		if name[:len(prefix)] == prefix {
			if match != "" {
				return ID{}, ErrMultipleIDMatches
			}
			match = name
		}
	}

	if match == "" {
		return ID{}, ErrNoIDPrefixFound
	}
	return ParseID(match)
}

// IDSet is a set of IDs.
type IDSet map[ID]struct{}

// NewIDSet returns a new IDSet containing ids.
func NewIDSet(ids ...ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has returns whether id is in the set.
func (s IDSet) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Insert adds id to the set.
func (s IDSet) Insert(id ID) {
	s[id] = struct{}{}
}

// BlobSet is a set of blob handles, used to track the set of blobs reachable
// from a collection of snapshots during a reachability scan.
type BlobSet map[BlobHandle]struct{}

// NewBlobSet returns a new BlobSet containing handles.
func NewBlobSet(handles ...BlobHandle) BlobSet {
	s := make(BlobSet, len(handles))
	for _, h := range handles {
		s[h] = struct{}{}
	}
	return s
}

func (s BlobSet) Has(h BlobHandle) bool {
	_, ok := s[h]
	return ok
}

func (s BlobSet) Insert(h BlobHandle) {
	s[h] = struct{}{}
}

// Config is the repository-wide configuration stored, encrypted, under a
// fixed ID at the root of the repository.
type Config struct {
	Version           uint        `json:"version"`
	ID                string      `json:"id"`
	ChunkerPolynomial chunker.Pol `json:"chunker_polynomial"`
}

// Repository is the full surface a caller needs to read and write blobs,
// packs and unpacked files (snapshots, keys, indexes) in a backup
// repository. Concrete implementations live in package repository.
type Repository interface {
	Loader
	BlobSaver
	LoaderUnpacked
	Lister

	Config() Config

	// WithBlobUploader runs fn with an uploader that may buffer and flush
	// blobs concurrently via a pool of pack-upload workers, and waits for
	// every buffered blob to be durably packed before returning.
	WithBlobUploader(ctx context.Context, fn func(ctx context.Context, uploader BlobSaverWithAsync) error) error
}
