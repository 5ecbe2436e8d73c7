package archiver

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	"github.com/restic/chunker"
	"golang.org/x/sync/errgroup"
)

// saveBlobWorkers is the number of goroutines chunking and saving blob
// content concurrently during a single snapshot.
const saveBlobWorkers = 8

// Options controls how a single snapshot is built.
type Options struct {
	// ParentSnapshot is recorded as the new snapshot's Parent field.
	ParentSnapshot *objects.ID
	// ParentTree is the tree of ParentSnapshot, used to recognize and
	// reuse unchanged file content instead of rereading it.
	ParentTree *objects.ID

	Excludes []string
	Tags     []string
	Hostname string
}

// Stats summarizes what a Snapshot call actually did.
type Stats struct {
	NewFiles       int
	ChangedFiles   int
	UnchangedFiles int
	Dirs           int
}

// Archiver walks one or more filesystem paths and stores them as a
// snapshot of content-addressed blobs and trees.
type Archiver struct {
	repo *repository.Repository
	pol  chunker.Pol

	saver  *blobSaver
	reject RejectFunc
	bufs   *bufferPool

	Stats Stats
}

// New returns an Archiver that saves into repo, chunking with repo's
// configured polynomial.
func New(repo *repository.Repository) *Archiver {
	return &Archiver{
		repo: repo,
		pol:  repo.Config().ChunkerPolynomial,
		bufs: newBufferPool(2*saveBlobWorkers, chunker.MaxSize),
	}
}

// Snapshot archives paths and saves the result as a new snapshot.
func (a *Archiver) Snapshot(ctx context.Context, paths []string, opts Options) (*data.Snapshot, error) {
	absPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		ap, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.Wrap(err, "resolve path")
		}
		absPaths = append(absPaths, ap)
	}

	wg, wgCtx := errgroup.WithContext(ctx)
	a.saver = newBlobSaver(wgCtx, wg, a.repo, saveBlobWorkers)
	a.reject = RejectByPattern(opts.Excludes)

	root, walkErr := a.archiveRoot(wgCtx, absPaths, opts.ParentTree)

	a.saver.TriggerShutdown()
	if err := wg.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	if _, _, err := a.repo.Flush(ctx); err != nil {
		return nil, errors.Wrap(err, "flush")
	}

	sn, err := data.NewSnapshot(paths, opts.Tags, opts.Hostname, time.Now())
	if err != nil {
		return nil, err
	}
	sn.Tree = root.Subtree
	sn.Parent = opts.ParentSnapshot
	sn.Excludes = opts.Excludes

	if _, err := data.SaveSnapshot(ctx, a.repo, sn); err != nil {
		return nil, errors.Wrap(err, "save snapshot")
	}

	return sn, nil
}
