package gc

import (
	"context"
	"testing"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

func singleFileTree(name string, content objects.ID) data.TreeNodeIterator {
	return func(yield func(data.NodeOrError) bool) {
		yield(data.NodeOrError{Node: &data.Node{
			Name:    name,
			Type:    data.NodeTypeFile,
			Content: objects.IDs{content},
		}})
	}
}

func countPacks(t *testing.T, repo *repository.Repository) int {
	t.Helper()
	n := 0
	err := repo.Backend().List(context.Background(), objects.PackFile, func(backend.FileInfo) error {
		n++
		return nil
	})
	rtest.OK(t, err)
	return n
}

func saveSnapshot(t *testing.T, repo *repository.Repository, blobID objects.ID) {
	t.Helper()
	ctx := context.Background()

	treeID, err := data.SaveTree(ctx, repo, singleFileTree("file.txt", blobID))
	rtest.OK(t, err)
	_, _, err = repo.Flush(ctx)
	rtest.OK(t, err)

	sn, err := data.NewSnapshot([]string{"/testdata"}, nil, "testhost", time.Now())
	rtest.OK(t, err)
	sn.Tree = &treeID
	_, err = data.SaveSnapshot(ctx, repo, sn)
	rtest.OK(t, err)
}

func TestGCRemovesUnusedPack(t *testing.T) {
	repo := repository.TestRepository(t)
	ctx := context.Background()

	blobID, _, _, err := repo.SaveBlob(ctx, objects.DataBlob, []byte("kept content"), objects.ID{}, false)
	rtest.OK(t, err)
	saveSnapshot(t, repo, blobID)

	_, _, _, err = repo.SaveBlob(ctx, objects.DataBlob, []byte("orphaned content"), objects.ID{}, false)
	rtest.OK(t, err)
	_, _, err = repo.Flush(ctx)
	rtest.OK(t, err)

	before := countPacks(t, repo)
	rtest.Assert(t, before >= 2, "expected at least 2 packs before gc, got %d", before)

	plan, err := Scan(ctx, repo, 1.0)
	rtest.OK(t, err)
	rtest.Assert(t, plan.Stats.UnusedPacks == 1, "expected exactly 1 unused pack, got %d", plan.Stats.UnusedPacks)

	rtest.OK(t, plan.Execute(ctx, 2))

	after := countPacks(t, repo)
	rtest.Assert(t, after == before-1, "expected pack count to drop by 1, got %d -> %d", before, after)

	content, err := repo.LoadBlob(ctx, objects.DataBlob, blobID, nil)
	rtest.OK(t, err)
	rtest.Equals(t, "kept content", string(content))
}

func TestGCRepacksObsoletePack(t *testing.T) {
	repo := repository.TestRepository(t)
	ctx := context.Background()

	keptID, _, _, err := repo.SaveBlob(ctx, objects.DataBlob, []byte("kept"), objects.ID{}, false)
	rtest.OK(t, err)
	_, _, _, err = repo.SaveBlob(ctx, objects.DataBlob, []byte("garbage"), objects.ID{}, false)
	rtest.OK(t, err)

	// Flush both blobs into the same pack, then reference only one of them.
	_, _, err = repo.Flush(ctx)
	rtest.OK(t, err)
	saveSnapshot(t, repo, keptID)

	before := countPacks(t, repo)

	plan, err := Scan(ctx, repo, 0)
	rtest.OK(t, err)
	rtest.Assert(t, plan.Stats.ObsoletePacks >= 1, "expected at least 1 obsolete pack, got %d", plan.Stats.ObsoletePacks)

	rtest.OK(t, plan.Execute(ctx, 2))
	rtest.Assert(t, plan.Stats.RepackedBlobs == 1, "expected exactly 1 repacked blob, got %d", plan.Stats.RepackedBlobs)

	content, err := repo.LoadBlob(ctx, objects.DataBlob, keptID, nil)
	rtest.OK(t, err)
	rtest.Equals(t, "kept", string(content))

	after := countPacks(t, repo)
	rtest.Assert(t, after <= before, "expected pack count not to grow, got %d -> %d", before, after)
}
