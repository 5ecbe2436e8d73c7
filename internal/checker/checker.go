// Package checker implements consistency checks against a repository: that
// every snapshot's tree is reachable and well-formed, that every blob a tree
// references is indexed, and that every indexed blob's pack actually exists
// on disk with matching content.
package checker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/debug"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	"github.com/jLantxa/mapache-sub000/internal/ui/progress"
	"golang.org/x/sync/errgroup"
)

// Checker runs consistency checks on a repository. It only detects internal
// inconsistencies in the stored data structures (missing blobs, corrupt
// packs, malformed trees); it needs a repository it can already read from.
type Checker struct {
	packs    map[objects.ID]int64
	blobRefs struct {
		sync.Mutex
		M objects.BlobSet
	}
	trackUnused bool

	snapshots []string

	repo *repository.Repository
}

// New returns a new checker which runs on repo.
func New(repo *repository.Repository, trackUnused bool) *Checker {
	c := &Checker{
		packs:       make(map[objects.ID]int64),
		repo:        repo,
		trackUnused: trackUnused,
	}
	c.blobRefs.M = objects.NewBlobSet()
	return c
}

// LoadSnapshots records the current set of snapshot file names to check.
func (c *Checker) LoadSnapshots(ctx context.Context) error {
	c.snapshots = c.snapshots[:0]
	for name := range c.repo.List(ctx, objects.SnapshotFile) {
		c.snapshots = append(c.snapshots, name)
	}
	return nil
}

// PackError describes an error with a specific pack.
type PackError struct {
	ID       objects.ID
	Orphaned bool
	Err      error
}

func (e *PackError) Error() string {
	return "pack " + e.ID.String() + ": " + e.Err.Error()
}

// IsOrphanedPack returns true if the error describes a pack which is not
// contained in any index.
func IsOrphanedPack(err error) bool {
	var e *PackError
	return errors.As(err, &e) && e.Orphaned
}

// LoadIndex computes the expected pack sizes from the repository's already
// loaded master index.
func (c *Checker) LoadIndex(ctx context.Context) (hints []error, errs []error) {
	debug.Log("Start")

	for packID, blobs := range c.repo.Index().PackBlobs() {
		c.packs[packID] = repository.ExpectedPackSize(blobs)
	}

	debug.Log("%d packs referenced by the index", len(c.packs))
	return hints, errs
}

// Packs checks that all packs referenced by the index are still available
// and that no extra, unreferenced packs exist. errChan is closed once all
// packs have been checked.
func (c *Checker) Packs(ctx context.Context, errChan chan<- error) {
	defer close(errChan)

	debug.Log("checking for %d packs", len(c.packs))

	repoPacks := make(map[objects.ID]int64)
	err := c.repo.Backend().List(ctx, objects.PackFile, func(fi backend.FileInfo) error {
		id, err := objects.ParseID(fi.Name)
		if err != nil {
			return err
		}
		repoPacks[id] = fi.Size
		return nil
	})
	if err != nil {
		errChan <- err
	}

	for id, size := range c.packs {
		reposize, ok := repoPacks[id]
		delete(repoPacks, id)

		if !ok {
			select {
			case <-ctx.Done():
				return
			case errChan <- &PackError{ID: id, Err: errors.New("does not exist")}:
			}
			continue
		}

		if size != reposize {
			select {
			case <-ctx.Done():
				return
			case errChan <- &PackError{ID: id, Err: errors.Errorf("unexpected file size: got %d, expected %d", reposize, size)}:
			}
		}
	}

	for orphanID := range repoPacks {
		select {
		case <-ctx.Done():
			return
		case errChan <- &PackError{ID: orphanID, Orphaned: true, Err: errors.New("not referenced in any index")}:
		}
	}
}

// Error is an error that occurred while checking a repository.
type Error struct {
	TreeID objects.ID
	Err    error
}

func (e *Error) Error() string {
	if !e.TreeID.IsNull() {
		return "tree " + e.TreeID.String() + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// TreeError collects several errors that occurred while processing a tree.
type TreeError struct {
	ID     objects.ID
	Errors []error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("tree %v: %v", e.ID, e.Errors)
}

func loadSnapshotTreeIDs(ctx context.Context, repo *repository.Repository) (ids objects.IDs, errs []error) {
	err := data.ForAllSnapshots(ctx, repo, repo, nil, func(id objects.ID, sn *data.Snapshot, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		treeID := *sn.Tree
		debug.Log("snapshot %v has tree %v", id, treeID)
		ids = append(ids, treeID)
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return ids, errs
}

// Structure checks that for all snapshots, every referenced data blob and
// subtree is available in the index. errChan is closed after all trees have
// been traversed.
func (c *Checker) Structure(ctx context.Context, p *progress.Counter, errChan chan<- error) {
	defer close(errChan)

	trees, errs := loadSnapshotTreeIDs(ctx, c.repo)
	p.SetMax(uint64(len(trees)))
	debug.Log("need to check %d trees from snapshots, %d errs returned", len(trees), len(errs))

	for _, err := range errs {
		select {
		case <-ctx.Done():
			return
		case errChan <- err:
		}
	}

	err := data.StreamTrees(ctx, c.repo, trees, p,
		func(treeID objects.ID) bool {
			c.blobRefs.Lock()
			h := objects.BlobHandle{ID: treeID, Type: objects.TreeBlob}
			already := c.blobRefs.M.Has(h)
			c.blobRefs.M.Insert(h)
			c.blobRefs.Unlock()
			return already
		},
		func(id objects.ID, loadErr error, nodes data.TreeNodeIterator) error {
			var treeErrs []error
			if loadErr != nil {
				treeErrs = append(treeErrs, loadErr)
			} else {
				for item := range nodes {
					treeErrs = append(treeErrs, c.checkNode(id, item)...)
				}
			}
			if len(treeErrs) == 0 {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case errChan <- &TreeError{ID: id, Errors: treeErrs}:
			}
			return nil
		})
	if err != nil {
		debug.Log("stream trees returned error: %v", err)
	}
}

func (c *Checker) checkNode(treeID objects.ID, item data.NodeOrError) (errs []error) {
	if item.Error != nil {
		return []error{item.Error}
	}
	node := item.Node
	if node.Name == "" {
		errs = append(errs, &Error{TreeID: treeID, Err: errors.New("node with empty name")})
	}

	switch node.Type {
	case data.NodeTypeFile:
		if node.Content == nil {
			errs = append(errs, &Error{TreeID: treeID, Err: errors.Errorf("file %q has nil blob list", node.Name)})
		}
		for i, blobID := range node.Content {
			if blobID.IsNull() {
				errs = append(errs, &Error{TreeID: treeID, Err: errors.Errorf("file %q blob %d has null ID", node.Name, i)})
				continue
			}
			if _, found := c.repo.LookupBlobSize(objects.DataBlob, blobID); !found {
				debug.Log("tree %v references blob %v which isn't contained in index", treeID, blobID)
				errs = append(errs, &Error{TreeID: treeID, Err: errors.Errorf("file %q blob %v not found in index", node.Name, blobID)})
			}
		}
		if c.trackUnused {
			c.blobRefs.Lock()
			for _, blobID := range node.Content {
				if blobID.IsNull() {
					continue
				}
				c.blobRefs.M.Insert(objects.BlobHandle{ID: blobID, Type: objects.DataBlob})
			}
			c.blobRefs.Unlock()
		}

	case data.NodeTypeDir:
		if node.Subtree == nil || node.Subtree.IsNull() {
			errs = append(errs, &Error{TreeID: treeID, Err: errors.Errorf("dir node %q has no subtree", node.Name)})
		}

	case data.NodeTypeSymlink, data.NodeTypeSocket, data.NodeTypeCharDev, data.NodeTypeDev, data.NodeTypeFifo:
		// nothing to check

	default:
		errs = append(errs, &Error{TreeID: treeID, Err: errors.Errorf("node %q with invalid type %q", node.Name, node.Type)})
	}

	return errs
}

// UnusedBlobs returns all blobs that have never been referenced by a
// snapshot's tree.
func (c *Checker) UnusedBlobs() (blobs []objects.BlobHandle) {
	if !c.trackUnused {
		panic("only works when tracking blob references")
	}
	c.blobRefs.Lock()
	defer c.blobRefs.Unlock()

	debug.Log("checking %d referenced blobs", len(c.blobRefs.M))
	c.repo.Index().Each(func(pb objects.PackedBlob) {
		if !c.blobRefs.M.Has(pb.BlobHandle) {
			debug.Log("blob %v not referenced", pb.BlobHandle)
			blobs = append(blobs, pb.BlobHandle)
		}
	})

	return blobs
}

// CountPacks returns the number of packs in the repository.
func (c *Checker) CountPacks() uint64 {
	return uint64(len(c.packs))
}

// GetPacks returns the expected size of every pack referenced by the index.
func (c *Checker) GetPacks() map[objects.ID]int64 {
	return c.packs
}

// checkPack reads a pack's header and verifies every blob against the
// index's recorded location, then reads back and digest-checks every blob.
func checkPack(ctx context.Context, repo *repository.Repository, id objects.ID, blobs []objects.PackedBlob) error {
	debug.Log("checking pack %v", id.String())

	if len(blobs) == 0 {
		return errors.Errorf("pack %v is empty or not indexed", id)
	}

	descs, err := repository.ParsePackHeader(ctx, repo.Backend(), repo.Key(), id)
	if err != nil {
		return errors.Errorf("pack %v: failed to read header: %v", id, err)
	}
	if len(descs) != len(blobs) {
		return errors.Errorf("pack %v: index lists %d blobs, header has %d", id, len(blobs), len(descs))
	}

	var errs []error
	for _, pb := range blobs {
		plain, err := repository.LoadPackedBlob(ctx, repo.Backend(), repo.Key(), pb)
		if err != nil {
			errs = append(errs, errors.Errorf("blob %v: %v", pb.ID, err))
			continue
		}
		if got := objects.Hash(plain); !got.Equal(pb.ID) {
			errs = append(errs, errors.Errorf("blob %v: content does not match its ID (got %v)", pb.ID, got))
		}
	}

	if len(errs) > 0 {
		return errors.Errorf("pack %v contains %v errors: %v", id, len(errs), errs)
	}
	return nil
}

// ReadData loads all data from the repository and checks its integrity.
func (c *Checker) ReadData(ctx context.Context, errChan chan<- error) {
	c.ReadPacks(ctx, c.packs, nil, errChan)
}

// ReadPacks loads data from the specified packs and checks their integrity.
func (c *Checker) ReadPacks(ctx context.Context, packs map[objects.ID]int64, p *progress.Counter, errChan chan<- error) {
	defer close(errChan)

	byPack := c.repo.Index().PackBlobs()

	g, ctx := errgroup.WithContext(ctx)
	type checkTask struct {
		id    objects.ID
		blobs []objects.PackedBlob
	}
	ch := make(chan checkTask)

	workerCount := int(c.repo.Connections())
	if workerCount < 1 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for {
				var task checkTask
				var ok bool
				select {
				case <-ctx.Done():
					return nil
				case task, ok = <-ch:
					if !ok {
						return nil
					}
				}

				err := checkPack(ctx, c.repo, task.id, task.blobs)
				p.Add(1)
				if err == nil {
					continue
				}
				select {
				case <-ctx.Done():
					return nil
				case errChan <- err:
				}
			}
		})
	}

	for id := range packs {
		blobs := byPack[id]
		select {
		case ch <- checkTask{id: id, blobs: blobs}:
		case <-ctx.Done():
		}
	}
	close(ch)

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
		case errChan <- err:
		}
	}
}
