package archiver

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jLantxa/mapache-sub000/internal/data"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// pathTrie groups the absolute paths passed to a single snapshot by shared
// ancestry, so that sibling paths such as /home/user/docs and /var/log can
// be connected under synthetic directory nodes down to a common root.
type pathTrie struct {
	children map[string]*pathTrie
	// fsPath is set only on a node that corresponds to one of the
	// original input paths; everything else is a synthetic container.
	fsPath string
}

func newPathTrie() *pathTrie {
	return &pathTrie{children: make(map[string]*pathTrie)}
}

func (t *pathTrie) insert(path string) {
	node := t
	for _, part := range splitPath(path) {
		child, ok := node.children[part]
		if !ok {
			child = newPathTrie()
			node.children[part] = child
		}
		node = child
	}
	node.fsPath = path
}

// splitPath breaks a cleaned absolute path into its path components,
// dropping the leading separator. It does not attempt to handle
// Windows volume names.
func splitPath(path string) []string {
	path = filepath.Clean(path)
	path = strings.TrimPrefix(path, string(filepath.Separator))
	if path == "" || path == "." {
		return nil
	}
	return strings.Split(path, string(filepath.Separator))
}

// archiveRoot builds the single top-level node covering every path given
// to a snapshot, synthesizing intermediate directories as needed.
func (a *Archiver) archiveRoot(ctx context.Context, paths []string, parentTree *objects.ID) (*data.Node, error) {
	trie := newPathTrie()
	for _, p := range paths {
		trie.insert(p)
	}
	return a.archiveTrie(ctx, "", trie, parentTree)
}

// archiveTrie builds the node for one trie position. If it corresponds to
// one of the original input paths it is read from disk; otherwise it's a
// synthetic directory that only exists to connect sibling paths.
func (a *Archiver) archiveTrie(ctx context.Context, name string, t *pathTrie, prevSubtree *objects.ID) (*data.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if t.fsPath != "" {
		fi, err := os.Lstat(t.fsPath)
		if err != nil {
			return nil, errors.Wrap(err, "lstat")
		}
		node, err := nodeFromFileInfo(name, t.fsPath, fi)
		if err != nil {
			return nil, err
		}
		if node.Type != data.NodeTypeDir {
			return a.archiveFile(ctx, node, t.fsPath, prevSubtree)
		}
		return a.archiveDir(ctx, node, t.fsPath, prevSubtree)
	}

	node := &data.Node{Name: name, Type: data.NodeTypeDir, Mode: os.ModeDir | 0o755}

	finder, err := a.prevTreeFinder(ctx, prevSubtree)
	if err != nil {
		return nil, err
	}
	defer finder.Close()

	names := make([]string, 0, len(t.children))
	for n := range t.children {
		names = append(names, n)
	}
	sort.Strings(names)

	tw := data.NewTreeWriter(a.repo)
	for _, n := range names {
		prevChildSubtree, err := findSubtree(finder, n)
		if err != nil {
			return nil, err
		}
		child, err := a.archiveTrie(ctx, n, t.children[n], prevChildSubtree)
		if err != nil {
			return nil, err
		}
		if err := tw.AddNode(child); err != nil {
			return nil, err
		}
	}

	treeID, err := tw.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	node.Subtree = &treeID
	a.Stats.Dirs++
	return node, nil
}

// archiveFile finalizes a leaf node that was itself given directly as a
// source path (as opposed to being found while walking a directory).
func (a *Archiver) archiveFile(ctx context.Context, node *data.Node, fsPath string, prevSubtree *objects.ID) (*data.Node, error) {
	if node.Type == data.NodeTypeFile {
		ids, err := a.saveFile(ctx, a.bufs, fsPath, node.Size)
		if err != nil {
			return nil, err
		}
		node.Content = ids
		a.Stats.NewFiles++
	}
	return node, nil
}

// archiveDir reads the entries of a real directory on disk, diffing each
// against the matching entry of the previous snapshot's tree (if any) to
// decide whether file content can be reused instead of reread.
func (a *Archiver) archiveDir(ctx context.Context, node *data.Node, fsPath string, prevSubtree *objects.ID) (*data.Node, error) {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		return nil, errors.Wrap(err, "read dir")
	}

	finder, err := a.prevTreeFinder(ctx, prevSubtree)
	if err != nil {
		return nil, err
	}
	defer finder.Close()

	tw := data.NewTreeWriter(a.repo)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		childPath := filepath.Join(fsPath, entry.Name())
		if a.reject != nil && a.reject(childPath) {
			continue
		}

		prevChild, err := finder.Find(entry.Name())
		if err != nil {
			return nil, err
		}

		child, err := a.archiveEntry(ctx, entry.Name(), childPath, prevChild)
		if err != nil {
			return nil, err
		}
		if err := tw.AddNode(child); err != nil {
			return nil, err
		}
	}

	treeID, err := tw.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	node.Subtree = &treeID
	a.Stats.Dirs++
	return node, nil
}

// archiveEntry builds the node for one directory entry found while
// walking a real directory, reusing prev's content when its metadata
// still matches what's on disk.
func (a *Archiver) archiveEntry(ctx context.Context, name, fsPath string, prev *data.Node) (*data.Node, error) {
	fi, err := os.Lstat(fsPath)
	if err != nil {
		return nil, errors.Wrap(err, "lstat")
	}

	node, err := nodeFromFileInfo(name, fsPath, fi)
	if err != nil {
		return nil, err
	}

	if node.Type == data.NodeTypeDir {
		var prevSubtree *objects.ID
		if prev != nil {
			prevSubtree = prev.Subtree
		}
		return a.archiveDir(ctx, node, fsPath, prevSubtree)
	}

	if node.Type != data.NodeTypeFile {
		return node, nil
	}

	if prev != nil && sameMetadata(prev, node) {
		node.Content = prev.Content
		a.Stats.UnchangedFiles++
		return node, nil
	}

	ids, err := a.saveFile(ctx, a.bufs, fsPath, node.Size)
	if err != nil {
		return nil, err
	}
	node.Content = ids
	if prev != nil {
		a.Stats.ChangedFiles++
	} else {
		a.Stats.NewFiles++
	}
	return node, nil
}

// prevTreeFinder opens a TreeFinder over subtree, or a no-op finder that
// reports every lookup as not-found when subtree is nil.
func (a *Archiver) prevTreeFinder(ctx context.Context, subtree *objects.ID) (*data.TreeFinder, error) {
	if subtree == nil {
		return data.NewTreeFinder(nil), nil
	}
	prevTree, err := data.LoadTree(ctx, a.repo, *subtree)
	if err != nil {
		return nil, errors.Wrap(err, "load previous tree")
	}
	return data.NewTreeFinder(prevTree), nil
}

func findSubtree(finder *data.TreeFinder, name string) (*objects.ID, error) {
	node, err := finder.Find(name)
	if err != nil || node == nil {
		return nil, err
	}
	return node.Subtree, nil
}
