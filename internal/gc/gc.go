// Package gc implements garbage collection over a repository: marking
// every blob reachable from a snapshot, classifying packs as unused,
// obsolete or tolerated, and rewriting the repository to drop what isn't
// reachable any more.
package gc

import (
	"context"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/debug"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultMinPackSizeFactor is the fraction of MaxPackSize below which a
// pack's live size makes it eligible for small-pack consolidation, once at
// least one other pack is already obsolete.
const DefaultMinPackSizeFactor = 0.8

// Stats summarizes what a Plan found and, after Execute, what it did.
type Stats struct {
	TotalPacks     int
	UnusedPacks    int
	ObsoletePacks  int
	ToleratedPacks int
	DanglingBlobs  int
	RepackedBlobs  int
}

// Plan is the result of Scan: the packs to remove outright, the packs to
// repack, and the blobs that must survive repacking. It is consumed
// exactly once by Execute.
type Plan struct {
	repo *repository.Repository

	unusedPacks   objects.IDSet
	obsoletePacks objects.IDSet
	repackBlobs   []objects.PackedBlob
	indexIDs      objects.IDSet

	Stats Stats
}

// Scan walks every snapshot's tree, marks every blob and pack it reaches,
// and classifies every pack currently in the repository. tolerance is the
// fraction of MAX_PACK_SIZE of garbage a pack may carry before it becomes
// a repack target.
func Scan(ctx context.Context, repo *repository.Repository, tolerance float64) (*Plan, error) {
	referenced := objects.NewBlobSet()
	referencedPacks := objects.NewIDSet()
	dangling := 0

	var trees objects.IDs
	err := data.ForAllSnapshots(ctx, repo, repo, nil, func(_ objects.ID, sn *data.Snapshot, err error) error {
		if err != nil {
			return err
		}
		if sn.Tree != nil {
			trees = append(trees, *sn.Tree)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "enumerate snapshots")
	}

	mark := func(t objects.BlobType, id objects.ID) {
		h := objects.BlobHandle{ID: id, Type: t}
		if referenced.Has(h) {
			return
		}
		referenced.Insert(h)
		if pb, ok := repo.Index().Lookup(t, id); ok {
			referencedPacks.Insert(pb.PackID)
		} else {
			dangling++
			debug.Log("blob %v referenced by a tree but missing from the index", id)
		}
	}

	err = data.StreamTrees(ctx, repo, trees, nil,
		func(treeID objects.ID) bool {
			already := referenced.Has(objects.BlobHandle{ID: treeID, Type: objects.TreeBlob})
			mark(objects.TreeBlob, treeID)
			return already
		},
		func(_ objects.ID, loadErr error, nodes data.TreeNodeIterator) error {
			if loadErr != nil {
				return loadErr
			}
			for item := range nodes {
				if item.Error != nil {
					return item.Error
				}
				node := item.Node
				if node.Type == data.NodeTypeDir && node.Subtree != nil {
					mark(objects.TreeBlob, *node.Subtree)
				}
				for _, blobID := range node.Content {
					mark(objects.DataBlob, blobID)
				}
			}
			return nil
		})
	if err != nil {
		return nil, errors.Wrap(err, "stream trees")
	}

	totalPacks := objects.NewIDSet()
	err = repo.Backend().List(ctx, objects.PackFile, func(fi backend.FileInfo) error {
		id, err := objects.ParseID(fi.Name)
		if err != nil {
			return err
		}
		totalPacks.Insert(id)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list packs")
	}

	unusedPacks := objects.NewIDSet()
	for id := range totalPacks {
		if !referencedPacks.Has(id) {
			unusedPacks.Insert(id)
		}
	}

	byPack := repo.Index().PackBlobs()

	obsoletePacks := objects.NewIDSet()
	toleratedPacks := objects.NewIDSet()
	liveSize := make(map[objects.ID]int64, len(referencedPacks))
	for id := range referencedPacks {
		var garbage, live int64
		for _, pb := range byPack[id] {
			if referenced.Has(pb.BlobHandle) {
				live += int64(pb.Length)
			} else {
				garbage += int64(pb.Length)
			}
		}
		liveSize[id] = live

		if float64(garbage)/float64(repository.MaxPackSize) > tolerance {
			obsoletePacks.Insert(id)
		} else {
			toleratedPacks.Insert(id)
		}
	}

	if len(obsoletePacks) > 0 {
		minLive := int64(DefaultMinPackSizeFactor * float64(repository.MaxPackSize))
		for id := range toleratedPacks {
			if liveSize[id] < minLive {
				obsoletePacks.Insert(id)
				delete(toleratedPacks, id)
			}
		}
	}

	var repackBlobs []objects.PackedBlob
	for id := range obsoletePacks {
		for _, pb := range byPack[id] {
			if referenced.Has(pb.BlobHandle) {
				repackBlobs = append(repackBlobs, pb)
			}
		}
	}

	plan := &Plan{
		repo:          repo,
		unusedPacks:   unusedPacks,
		obsoletePacks: obsoletePacks,
		repackBlobs:   repackBlobs,
		indexIDs:      repo.Index().IDs(),
		Stats: Stats{
			TotalPacks:     len(totalPacks),
			UnusedPacks:    len(unusedPacks),
			ObsoletePacks:  len(obsoletePacks),
			ToleratedPacks: len(toleratedPacks),
			DanglingBlobs:  dangling,
		},
	}
	return plan, nil
}

// Execute carries out the plan: deletes unreferenced packs, rewrites the
// index to drop obsolete packs, repacks every live blob those packs held,
// flushes the result, and only then deletes the stale index and pack
// files. It must be called at most once per Plan.
func (p *Plan) Execute(ctx context.Context, repackConcurrency int) error {
	repo := p.repo

	for id := range p.unusedPacks {
		h := backend.Handle{Type: backend.PackFile, Name: id.String()}
		if err := repo.Backend().Remove(ctx, h); err != nil {
			return errors.Wrapf(err, "remove unused pack %s", id.Str())
		}
	}

	repo.Index().Rewrite(p.obsoletePacks)

	if repackConcurrency < 1 {
		repackConcurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	ch := make(chan objects.PackedBlob)
	for i := 0; i < repackConcurrency; i++ {
		g.Go(func() error {
			for {
				var pb objects.PackedBlob
				var ok bool
				select {
				case <-gctx.Done():
					return gctx.Err()
				case pb, ok = <-ch:
					if !ok {
						return nil
					}
				}

				plain, err := repository.LoadPackedBlob(gctx, repo.Backend(), repo.Key(), pb)
				if err != nil {
					return errors.Wrapf(err, "read blob %s for repack", pb.ID.Str())
				}
				// The blob's ID already equals its content hash, and the
				// rewritten index no longer contains it, so SaveBlob packs
				// it fresh. A concurrent repack of the same blob dedups
				// against whichever pending copy wins the race.
				if _, _, _, err := repo.SaveBlob(gctx, pb.Type, plain, pb.ID, false); err != nil {
					return errors.Wrapf(err, "repack blob %s", pb.ID.Str())
				}
				debug.Log("repacked blob %v from pack %v", pb.ID, pb.PackID)
			}
		})
	}

sendLoop:
	for _, pb := range p.repackBlobs {
		select {
		case ch <- pb:
		case <-gctx.Done():
			break sendLoop
		}
	}
	close(ch)

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "repack")
	}
	p.Stats.RepackedBlobs = len(p.repackBlobs)

	if _, _, err := repo.Flush(ctx); err != nil {
		return errors.Wrap(err, "flush after repack")
	}

	staleIndexes := objects.NewIDSet()
	survivingIndexes := repo.Index().IDs()
	for id := range p.indexIDs {
		if !survivingIndexes.Has(id) {
			staleIndexes.Insert(id)
		}
	}
	for id := range staleIndexes {
		h := backend.Handle{Type: backend.IndexFile, Name: id.String()}
		if err := repo.Backend().Remove(ctx, h); err != nil {
			return errors.Wrapf(err, "remove stale index %s", id.Str())
		}
	}

	for id := range p.obsoletePacks {
		h := backend.Handle{Type: backend.PackFile, Name: id.String()}
		if err := repo.Backend().Remove(ctx, h); err != nil {
			return errors.Wrapf(err, "remove obsolete pack %s", id.Str())
		}
	}

	return nil
}
