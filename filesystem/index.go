package filesystem

import (
	"fmt"

	"github.com/brettbedarf/manifestfs"
)

// DirEntry is one row of a directory listing
type DirEntry struct {
	ID   uint64
	Kind manifestfs.EntryKind
	Name string
}

// Index maps identities to nodes and holds the precomputed listing of every
// directory. It is built once and only read afterwards.
type Index struct {
	nodes    []*Node               // nodes[id-RootID]
	listings map[uint64][]DirEntry // directories only
}

// NewIndex flattens the tree rooted at root. The tree's identities must be
// exactly RootID..RootID+N-1 in pre-order, as assigned by Build.
func NewIndex(root *Node) (*Index, error) {
	if root == nil {
		return nil, fmt.Errorf("nil root")
	}
	nodes := Flatten(root)
	idx := &Index{
		nodes:    nodes,
		listings: make(map[uint64][]DirEntry),
	}
	for i, n := range nodes {
		if want := RootID + uint64(i); n.id != want {
			return nil, fmt.Errorf("node %q has identity %d, expected %d", n.Path(), n.id, want)
		}
		if n.IsDir() {
			idx.listings[n.id] = listingFor(n)
		}
	}
	return idx, nil
}

func listingFor(dir *Node) []DirEntry {
	entries := make([]DirEntry, 0, len(dir.children)+2)
	entries = append(entries, DirEntry{ID: dir.id, Kind: manifestfs.DirKind, Name: "."})
	if dir.parent != nil {
		entries = append(entries, DirEntry{ID: dir.parent.id, Kind: manifestfs.DirKind, Name: ".."})
	}
	for _, c := range dir.children {
		entries = append(entries, DirEntry{ID: c.id, Kind: c.kind, Name: c.name})
	}
	return entries
}

// Node returns the node with identity id
func (x *Index) Node(id uint64) (*Node, bool) {
	if id < RootID || id-RootID >= uint64(len(x.nodes)) {
		return nil, false
	}
	return x.nodes[id-RootID], true
}

// Listing returns the ordered entries of directory id. The returned slice must not be modified.
func (x *Index) Listing(id uint64) ([]DirEntry, bool) {
	entries, ok := x.listings[id]
	return entries, ok
}

// Len returns the number of nodes in the tree
func (x *Index) Len() int {
	return len(x.nodes)
}

// Root returns the root node
func (x *Index) Root() *Node {
	return x.nodes[0]
}
