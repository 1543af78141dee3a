package filesystem

import (
	"strings"

	"github.com/brettbedarf/manifestfs"
)

// Node is one entry of the immutable manifest tree. Directories own their
// children; parent is a navigational back-link set once while linking.
// After Build returns nothing mutates a Node so it needs no locking.
type Node struct {
	id       uint64
	name     string // last path element; "" for the root
	parent   *Node  // nil only for the root
	kind     manifestfs.EntryKind
	children []*Node          // manifest order; directories only
	byName   map[string]*Node // directories only
	backend  manifestfs.Backend
}

// newDirNode creates a directory Node with no children
func newDirNode(id uint64, name string) *Node {
	return &Node{
		id:     id,
		name:   name,
		kind:   manifestfs.DirKind,
		byName: make(map[string]*Node),
	}
}

// newFileNode creates a file Node served by backend
func newFileNode(id uint64, name string, backend manifestfs.Backend) *Node {
	return &Node{
		id:      id,
		name:    name,
		kind:    manifestfs.FileKind,
		backend: backend,
	}
}

// ID returns the node's identity; stable for the life of the mount
func (n *Node) ID() uint64 {
	return n.id
}

// Name returns the node's name; "" for the root
func (n *Node) Name() string {
	return n.name
}

func (n *Node) Kind() manifestfs.EntryKind {
	return n.kind
}

func (n *Node) IsDir() bool {
	return n.kind == manifestfs.DirKind
}

// Parent returns the containing directory or nil for the root
func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Backend returns the content source of a file node; nil for directories
func (n *Node) Backend() manifestfs.Backend {
	return n.backend
}

// Children returns the node's children in manifest order.
// The returned slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// GetChild finds a direct child by name
func (n *Node) GetChild(name string) (child *Node, ok bool) {
	child, ok = n.byName[name]
	return
}

// addChild appends child and points its parent link at n.
// Only called while the tree is being built.
func (n *Node) addChild(child *Node) {
	n.children = append(n.children, child)
	n.byName[child.name] = child
	child.parent = n
}

// Path returns the slash-joined path of the node relative from root.
// If the node is the root, returns ""
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}
	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}
