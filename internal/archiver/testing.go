package archiver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/objects"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	rtest "github.com/jLantxa/mapache-sub000/internal/test"
)

// TestNodeFromPath lstats path and returns the metadata-only node a real
// snapshot run would build for it, without saving any content.
func TestNodeFromPath(t testing.TB, path string) *data.Node {
	t.Helper()
	fi, err := os.Lstat(path)
	rtest.OK(t, err)
	node, err := nodeFromFileInfo(filepath.Base(path), path, fi)
	rtest.OK(t, err)
	return node
}

// TestSnapshot archives path into repo and returns the resulting snapshot,
// failing the test on any error. parentTree, if non-nil, is used to reuse
// unchanged file content from a previous run.
func TestSnapshot(t testing.TB, repo *repository.Repository, path string, parentTree *objects.ID) *data.Snapshot {
	t.Helper()
	a := New(repo)
	sn, err := a.Snapshot(context.Background(), []string{path}, Options{ParentTree: parentTree})
	rtest.OK(t, err)
	return sn
}
