// Package restorer writes a snapshot's tree back out to the filesystem.
package restorer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jLantxa/mapache-sub000/internal/bloblru"
	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// blobCacheSize bounds the memory used to cache recently-loaded data
// blobs across sibling files that happen to share a pack.
const blobCacheSize = 64 << 20

// repo is the subset of repository.Repository the restorer needs.
type repo interface {
	objects.BlobLoader
}

// Restorer writes the tree rooted at a snapshot to a target directory.
type Restorer struct {
	repo  repo
	blobs *bloblru.Cache

	Stats Stats
}

// Stats summarizes what a Restorer.To call actually wrote.
type Stats struct {
	Files int
	Dirs  int
	Bytes uint64
}

// New returns a Restorer that reads content from repo.
func New(repo repo) *Restorer {
	return &Restorer{repo: repo, blobs: bloblru.New(blobCacheSize)}
}

// To restores the tree at root into target, which is created if it
// doesn't already exist.
func (r *Restorer) To(ctx context.Context, root objects.ID, target string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return errors.Wrap(err, "create target")
	}
	return r.restoreTree(ctx, root, target)
}

func (r *Restorer) restoreTree(ctx context.Context, id objects.ID, target string) error {
	nodes, err := data.LoadTree(ctx, r.repo, id)
	if err != nil {
		return errors.Wrap(err, "load tree")
	}

	for item := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.Error != nil {
			return item.Error
		}
		if err := r.restoreNode(ctx, item.Node, target); err != nil {
			return err
		}
	}
	return nil
}

func (r *Restorer) restoreNode(ctx context.Context, node *data.Node, targetDir string) error {
	path := filepath.Join(targetDir, node.Name)

	switch node.Type {
	case data.NodeTypeDir:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return errors.Wrap(err, "mkdir")
		}
		if node.Subtree != nil {
			if err := r.restoreTree(ctx, *node.Subtree, path); err != nil {
				return err
			}
		}
		if node.Mode != 0 {
			_ = os.Chmod(path, node.Mode.Perm())
		}
		r.Stats.Dirs++
		return nil

	case data.NodeTypeSymlink:
		if err := os.Symlink(node.LinkTarget, path); err != nil {
			return errors.Wrap(err, "symlink")
		}
		return nil

	case data.NodeTypeFile:
		if err := r.restoreFile(ctx, node, path); err != nil {
			return err
		}
		r.Stats.Files++
		return nil

	default:
		// Devices, fifos and sockets aren't recreated; only their
		// metadata existed to describe what was originally there.
		return nil
	}
}

func (r *Restorer) restoreFile(ctx context.Context, node *data.Node, path string) error {
	mode := node.Mode
	if mode == 0 {
		mode = 0o644
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return errors.Wrap(err, "create file")
	}

	for _, blobID := range node.Content {
		if err := ctx.Err(); err != nil {
			f.Close()
			return err
		}

		blob, err := r.loadDataBlob(ctx, blobID)
		if err != nil {
			f.Close()
			return errors.Wrap(err, "load content")
		}
		if _, err := f.Write(blob); err != nil {
			f.Close()
			return errors.Wrap(err, "write")
		}
		r.Stats.Bytes += uint64(len(blob))
	}

	return f.Close()
}

// loadDataBlob returns the plaintext of a data blob, serving it from the
// shared cache when a sibling file already pulled it from the same pack.
func (r *Restorer) loadDataBlob(ctx context.Context, id objects.ID) ([]byte, error) {
	if blob, ok := r.blobs.Get(id); ok {
		return blob, nil
	}

	blob, err := r.repo.LoadBlob(ctx, objects.DataBlob, id, nil)
	if err != nil {
		return nil, err
	}
	r.blobs.Add(id, blob)
	return blob, nil
}
