package archiver

import (
	"io/fs"
	"os"

	"github.com/jLantxa/mapache-sub000/internal/data"
)

// nodeTypeOf maps a file mode to the node type the tree format records.
func nodeTypeOf(mode fs.FileMode) data.NodeType {
	switch {
	case mode&fs.ModeSymlink != 0:
		return data.NodeTypeSymlink
	case mode&fs.ModeDir != 0:
		return data.NodeTypeDir
	case mode&fs.ModeNamedPipe != 0:
		return data.NodeTypeFifo
	case mode&fs.ModeSocket != 0:
		return data.NodeTypeSocket
	case mode&fs.ModeDevice != 0:
		return data.NodeTypeDev
	case mode&fs.ModeCharDevice != 0:
		return data.NodeTypeCharDev
	case mode&fs.ModeIrregular != 0:
		return data.NodeTypeIrregular
	default:
		return data.NodeTypeFile
	}
}

// nodeFromFileInfo builds the metadata half of a Node (no Content or
// Subtree) from a path's lstat result. Symlink targets are resolved
// eagerly since they're small and stored inline.
func nodeFromFileInfo(name, path string, fi os.FileInfo) (*data.Node, error) {
	node := &data.Node{
		Name:    name,
		Type:    nodeTypeOf(fi.Mode()),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
		Size:    uint64(fi.Size()),
	}

	if node.Type == data.NodeTypeSymlink {
		target, err := os.Readlink(path)
		if err != nil {
			return nil, err
		}
		node.LinkTarget = target
	}

	return node, nil
}

// sameMetadata reports whether prev and cur describe the same content,
// per the type-specific fields the diff streamer compares. Equal metadata
// for a file means its blob list can be reused without being reread.
func sameMetadata(prev, cur *data.Node) bool {
	if prev.Type != cur.Type {
		return false
	}
	if prev.Mode != cur.Mode {
		return false
	}
	if !prev.ModTime.Equal(cur.ModTime) {
		return false
	}
	switch cur.Type {
	case data.NodeTypeFile:
		return prev.Size == cur.Size
	case data.NodeTypeSymlink:
		return prev.LinkTarget == cur.LinkTarget
	default:
		return true
	}
}
