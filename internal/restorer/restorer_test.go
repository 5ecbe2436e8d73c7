package restorer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	"github.com/jLantxa/mapache-sub000/internal/restorer"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

func saveDir(t *testing.T, repo *repository.Repository, entries data.TreeNodeIterator) objects.ID {
	t.Helper()
	ctx := context.Background()
	id, err := data.SaveTree(ctx, repo, entries)
	rtest.OK(t, err)
	_, _, err = repo.Flush(ctx)
	rtest.OK(t, err)
	return id
}

func nodeIter(nodes ...*data.Node) data.TreeNodeIterator {
	return func(yield func(data.NodeOrError) bool) {
		for _, n := range nodes {
			if !yield(data.NodeOrError{Node: n}) {
				return
			}
		}
	}
}

func TestRestoreFileAndDir(t *testing.T) {
	repo := repository.TestRepository(t)
	ctx := context.Background()

	content := []byte("hello, restored world")
	blobID, _, _, err := repo.SaveBlob(ctx, objects.DataBlob, content, objects.ID{}, false)
	rtest.OK(t, err)

	subID := saveDir(t, repo, nodeIter(&data.Node{
		Name:    "nested.txt",
		Type:    data.NodeTypeFile,
		Mode:    0o644,
		Content: objects.IDs{blobID},
	}))

	rootID := saveDir(t, repo, nodeIter(
		&data.Node{Name: "sub", Type: data.NodeTypeDir, Mode: 0o755, Subtree: &subID},
		&data.Node{Name: "top.txt", Type: data.NodeTypeFile, Mode: 0o644, Content: objects.IDs{blobID}},
	))

	target := t.TempDir()
	r := restorer.New(repo)
	rtest.OK(t, r.To(ctx, rootID, target))

	got, err := os.ReadFile(filepath.Join(target, "top.txt"))
	rtest.OK(t, err)
	rtest.Equals(t, content, got)

	got, err = os.ReadFile(filepath.Join(target, "sub", "nested.txt"))
	rtest.OK(t, err)
	rtest.Equals(t, content, got)

	rtest.Assert(t, r.Stats.Files == 2, "expected 2 restored files, got %d", r.Stats.Files)
	rtest.Assert(t, r.Stats.Dirs == 1, "expected 1 restored dir, got %d", r.Stats.Dirs)
}

func TestRestoreSymlink(t *testing.T) {
	repo := repository.TestRepository(t)
	ctx := context.Background()

	rootID := saveDir(t, repo, nodeIter(&data.Node{
		Name:       "link",
		Type:       data.NodeTypeSymlink,
		Mode:       0o777,
		LinkTarget: "top.txt",
	}))

	target := t.TempDir()
	r := restorer.New(repo)
	rtest.OK(t, r.To(ctx, rootID, target))

	got, err := os.Readlink(filepath.Join(target, "link"))
	rtest.OK(t, err)
	rtest.Equals(t, "top.txt", got)
}

func TestRestoreMultiBlobFile(t *testing.T) {
	repo := repository.TestRepository(t)
	ctx := context.Background()

	part1, _, _, err := repo.SaveBlob(ctx, objects.DataBlob, []byte("part one "), objects.ID{}, false)
	rtest.OK(t, err)
	part2, _, _, err := repo.SaveBlob(ctx, objects.DataBlob, []byte("part two"), objects.ID{}, false)
	rtest.OK(t, err)

	rootID := saveDir(t, repo, nodeIter(&data.Node{
		Name:    "split.txt",
		Type:    data.NodeTypeFile,
		Mode:    0o644,
		Content: objects.IDs{part1, part2},
	}))

	target := t.TempDir()
	r := restorer.New(repo)
	rtest.OK(t, r.To(ctx, rootID, target))

	got, err := os.ReadFile(filepath.Join(target, "split.txt"))
	rtest.OK(t, err)
	rtest.Equals(t, "part one part two", string(got))
	rtest.Equals(t, uint64(len("part one part two")), r.Stats.Bytes)
}
