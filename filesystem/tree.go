package filesystem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brettbedarf/manifestfs"
	"github.com/brettbedarf/manifestfs/internal/util"
	"github.com/brettbedarf/manifestfs/manifest"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// RootID is the identity of the root directory
const RootID uint64 = fuse.FUSE_ROOT_ID

// Build turns a parsed manifest into a fully linked node tree.
// Identities are assigned in pre-order starting at RootID: a directory is numbered
// before its children, children in manifest order. Any malformed entry aborts the
// whole build with a *manifestfs.DescriptorError; no partial tree is returned.
func Build(v *manifest.Value, resolver manifestfs.BackendResolver) (*Node, error) {
	logger := util.GetLogger("Build")

	if v == nil || v.Kind != manifest.Object {
		desc := "nothing"
		if v != nil {
			desc = v.Describe()
		}
		return nil, &manifestfs.DescriptorError{Reason: "manifest root must be an object, got " + desc}
	}

	b := &treeBuilder{resolver: resolver, next: RootID}
	root, err := b.build("", "", v)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build tree")
		return nil, err
	}
	logger.Debug().Uint64("nodes", b.next-RootID).Msg("Built tree")
	return root, nil
}

type treeBuilder struct {
	resolver manifestfs.BackendResolver
	next     uint64 // identity of the next node
}

func (b *treeBuilder) build(name, path string, v *manifest.Value) (*Node, error) {
	id := b.next
	b.next++

	switch v.Kind {
	case manifest.Object:
		dir := newDirNode(id, name)
		// Children are built and owned first, then linked back to dir
		children := make([]*Node, 0, len(v.Fields))
		seen := make(map[string]struct{}, len(v.Fields))
		for _, f := range v.Fields {
			childPath := joinPath(path, f.Name)
			if reason := invalidName(f.Name); reason != "" {
				return nil, &manifestfs.DescriptorError{Path: childPath, Reason: reason}
			}
			if _, dup := seen[f.Name]; dup {
				return nil, &manifestfs.DescriptorError{Path: childPath, Reason: "duplicate entry name"}
			}
			seen[f.Name] = struct{}{}

			child, err := b.build(f.Name, childPath, f.Value)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		for _, child := range children {
			dir.addChild(child)
		}
		return dir, nil

	case manifest.String:
		backend, err := b.resolver.Resolve(v.Str)
		if err != nil {
			return nil, withPath(err, path, v.Str)
		}
		return newFileNode(id, name, backend), nil

	default:
		return nil, &manifestfs.DescriptorError{
			Path:   path,
			Reason: "expected object or string descriptor, got " + v.Describe(),
		}
	}
}

// withPath attaches the manifest path to a resolver error
func withPath(err error, path, descriptor string) error {
	var derr *manifestfs.DescriptorError
	if errors.As(err, &derr) {
		out := *derr
		out.Path = path
		if out.Descriptor == "" {
			out.Descriptor = descriptor
		}
		return &out
	}
	return &manifestfs.DescriptorError{Path: path, Descriptor: descriptor, Reason: err.Error()}
}

func invalidName(name string) string {
	switch {
	case name == "":
		return "empty entry name"
	case name == "." || name == "..":
		return fmt.Sprintf("reserved entry name %q", name)
	case strings.ContainsRune(name, '/'):
		return "entry name contains '/'"
	case strings.ContainsRune(name, 0):
		return "entry name contains NUL"
	}
	return ""
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Flatten returns every node of the tree in pre-order, i.e. identity order for a
// tree produced by Build
func Flatten(root *Node) []*Node {
	var out []*Node
	Walk(root, func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Walk visits root and its descendants in pre-order. Returning false from fn
// skips the children of that node.
func Walk(root *Node, fn func(n *Node) bool) {
	if root == nil {
		return
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
}

// Resolve finds the node at a slash-separated path relative from root.
// Empty elements are ignored so "/a//b/" equals "a/b".
func Resolve(root *Node, path string) (*Node, bool) {
	cur := root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		child, ok := cur.GetChild(part)
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}
