package registry

import (
	"context"
	"path"
	"strings"
)

// Node is one entry of the tree: a collection (directory) or a resource
// (leaf with content). Both carry string properties.
type Node struct {
	Path       string
	Collection bool
	Properties map[string]string
	Content    []byte
}

// Property returns the named property, or "" when unset.
func (n *Node) Property(name string) string {
	if n == nil || n.Properties == nil {
		return ""
	}
	return n.Properties[name]
}

// Tree is a path-addressed resource tree.
type Tree interface {
	// Exists reports whether a node is stored at p.
	Exists(ctx context.Context, p string) (bool, error)

	// Get returns the node at p, or nil when absent.
	Get(ctx context.Context, p string) (*Node, error)

	// Put stores n at n.Path, replacing any existing node there and creating
	// missing ancestor collections.
	Put(ctx context.Context, n *Node) error

	// Delete removes the node at p and everything below it. Deleting a
	// missing path is not an error.
	Delete(ctx context.Context, p string) error

	// Children returns the full paths of the direct children of p, sorted.
	Children(ctx context.Context, p string) ([]string, error)
}

// Join builds a clean absolute path from segments.
func Join(segments ...string) string {
	return Clean(path.Join(segments...))
}

// Clean normalizes p to an absolute path without a trailing slash.
func Clean(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return p
}
