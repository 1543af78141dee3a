package filesystem

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brettbedarf/manifestfs"
	"github.com/brettbedarf/manifestfs/adapters"
	"github.com/brettbedarf/manifestfs/internal/mocks"
	"github.com/brettbedarf/manifestfs/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMountTime = time.Unix(1_700_000_000, 0)

// newTestRegistry resolves the builtin descriptor types without touching the network
func newTestRegistry() *adapters.Registry {
	r := adapters.NewRegistry()
	adapters.RegisterBuiltins(r, adapters.Options{MountTime: testMountTime})
	return r
}

func mustBuild(t *testing.T, v *manifest.Value) *Node {
	t.Helper()
	root, err := Build(v, newTestRegistry())
	require.NoError(t, err)
	return root
}

func obj(fields ...manifest.Field) *manifest.Value { return manifest.NewObject(fields...) }
func str(s string) *manifest.Value                 { return manifest.NewString(s) }
func f(name string, v *manifest.Value) manifest.Field {
	return manifest.F(name, v)
}

// sampleManifest numbers as:
// 1 /, 2 a.txt, 3 docs, 4 docs/readme.md, 5 docs/deep, 6 docs/deep/x, 7 z.bin
func sampleManifest() *manifest.Value {
	return obj(
		f("a.txt", str("raw:alpha")),
		f("docs", obj(
			f("readme.md", str("raw:# readme")),
			f("deep", obj(
				f("x", str("raw:x")),
			)),
		)),
		f("z.bin", str("https://example.com/z.bin")),
	)
}

func TestBuild_PreOrderIdentities(t *testing.T) {
	t.Parallel()

	root := mustBuild(t, sampleManifest())

	want := []struct {
		id   uint64
		path string
		kind manifestfs.EntryKind
	}{
		{1, "", manifestfs.DirKind},
		{2, "a.txt", manifestfs.FileKind},
		{3, "docs", manifestfs.DirKind},
		{4, "docs/readme.md", manifestfs.FileKind},
		{5, "docs/deep", manifestfs.DirKind},
		{6, "docs/deep/x", manifestfs.FileKind},
		{7, "z.bin", manifestfs.FileKind},
	}

	nodes := Flatten(root)
	require.Len(t, nodes, len(want))
	for i, w := range want {
		assert.Equal(t, w.id, nodes[i].ID(), "node %d", i)
		assert.Equal(t, w.path, nodes[i].Path(), "node %d", i)
		assert.Equal(t, w.kind, nodes[i].Kind(), "node %d", i)
	}
}

func TestBuild_ParentLinks(t *testing.T) {
	t.Parallel()

	root := mustBuild(t, sampleManifest())

	assert.Nil(t, root.Parent())
	assert.True(t, root.IsRoot())
	assert.Equal(t, RootID, root.ID())
	assert.Equal(t, "", root.Name())

	Walk(root, func(n *Node) bool {
		for _, c := range n.Children() {
			assert.Same(t, n, c.Parent(), "parent of %s", c.Path())
			got, ok := n.GetChild(c.Name())
			assert.True(t, ok)
			assert.Same(t, c, got)
		}
		if !n.IsDir() {
			assert.Empty(t, n.Children())
			assert.NotNil(t, n.Backend())
		} else {
			assert.Nil(t, n.Backend())
		}
		return true
	})
}

func TestBuild_BackendVariants(t *testing.T) {
	t.Parallel()

	root := mustBuild(t, obj(
		f("raw.txt", str("raw:abc")),
		f("local.txt", str("file:/etc/hostname")),
		f("remote", str("http://example.com/a")),
		f("secure", str("https://example.com/b")),
	))

	children := root.Children()
	require.Len(t, children, 4)
	assert.IsType(t, &adapters.RawBackend{}, children[0].Backend())
	assert.IsType(t, &adapters.LocalBackend{}, children[1].Backend())
	assert.IsType(t, &adapters.HTTPBackend{}, children[2].Backend())
	assert.Equal(t, "https://example.com/b", children[3].Backend().(*adapters.HTTPBackend).URL())
}

func TestBuild_PreservesManifestOrder(t *testing.T) {
	t.Parallel()

	root := mustBuild(t, obj(
		f("c", str("raw:")),
		f("a", str("raw:")),
		f("b", str("raw:")),
	))

	var names []string
	for _, c := range root.Children() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestBuild_EmptyRoot(t *testing.T) {
	t.Parallel()

	root := mustBuild(t, obj())
	assert.True(t, root.IsDir())
	assert.Empty(t, root.Children())
	assert.Len(t, Flatten(root), 1)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest *manifest.Value
		path     string
		reason   string
	}{
		{"unknown type", obj(f("bad.txt", str("unknown:xyz"))), "bad.txt", "unknown descriptor type"},
		{"missing separator", obj(f("bad.txt", str("nocolon"))), "bad.txt", "missing ':'"},
		{"nested failure", obj(f("ok", str("raw:1")), f("d", obj(f("e", obj(f("bad", str("?:x"))))))), "d/e/bad", "unknown descriptor type"},
		{"array value", obj(f("list", manifest.NewInvalid("array"))), "list", "got array"},
		{"number value", obj(f("n", manifest.NewInvalid("number"))), "n", "got number"},
		{"root is string", str("raw:abc"), "", "root must be an object"},
		{"root is array", manifest.NewInvalid("array"), "", "root must be an object"},
		{"nil root", nil, "", "root must be an object"},
		{"empty name", obj(f("", str("raw:x"))), "", "empty entry name"},
		{"dot name", obj(f(".", str("raw:x"))), ".", "reserved entry name"},
		{"dotdot name", obj(f("d", obj(f("..", str("raw:x"))))), "d/..", "reserved entry name"},
		{"slash in name", obj(f("a/b", str("raw:x"))), "a/b", "contains '/'"},
		{"duplicate name", obj(f("a", str("raw:1")), f("a", str("raw:2"))), "a", "duplicate"},
		{"bad http url", obj(f("u", str("http:nohost"))), "u", "no host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root, err := Build(tt.manifest, newTestRegistry())
			require.Error(t, err)
			assert.Nil(t, root, "no partial tree")
			assert.ErrorIs(t, err, manifestfs.ErrDescriptor)

			var derr *manifestfs.DescriptorError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.path, derr.Path)
			assert.Contains(t, derr.Reason, tt.reason)
		})
	}
}

func TestBuild_ResolverNonDescriptorError(t *testing.T) {
	t.Parallel()

	resolver := &mocks.MockResolver{}
	resolver.On("Resolve", "x:y").Return(nil, errors.New("boom"))

	_, err := Build(obj(f("d", obj(f("f", str("x:y"))))), resolver)
	require.Error(t, err)
	assert.ErrorIs(t, err, manifestfs.ErrDescriptor)

	var derr *manifestfs.DescriptorError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "d/f", derr.Path)
	assert.Equal(t, "x:y", derr.Descriptor)
	assert.Equal(t, "boom", derr.Reason)
}

func TestBuild_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	resolver := &mocks.MockResolver{}
	resolver.On("Resolve", "ok:1").Return(&mocks.MockBackend{}, nil).Once()
	resolver.On("Resolve", "bad:2").Return(nil, &manifestfs.DescriptorError{Reason: "nope"}).Once()

	_, err := Build(obj(f("a", str("ok:1")), f("b", str("bad:2")), f("c", str("never:3"))), resolver)
	require.Error(t, err)
	resolver.AssertExpectations(t)
	resolver.AssertNotCalled(t, "Resolve", "never:3")
}

func TestResolve(t *testing.T) {
	t.Parallel()

	root := mustBuild(t, sampleManifest())

	tests := []struct {
		path   string
		wantID uint64
		ok     bool
	}{
		{"", 1, true},
		{"/", 1, true},
		{"a.txt", 2, true},
		{"/docs/deep/x", 6, true},
		{"docs//deep/", 5, true},
		{"docs/missing", 0, false},
		{"a.txt/child", 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.path), func(t *testing.T) {
			n, ok := Resolve(root, tt.path)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.wantID, n.ID())
			}
		})
	}
}

func TestWalk_SkipChildren(t *testing.T) {
	t.Parallel()

	root := mustBuild(t, sampleManifest())

	var visited []uint64
	Walk(root, func(n *Node) bool {
		visited = append(visited, n.ID())
		return n.Name() != "docs"
	})
	assert.Equal(t, []uint64{1, 2, 3, 7}, visited)
}

func TestNode_Path(t *testing.T) {
	t.Parallel()

	root := newDirNode(1, "")
	dir := newDirNode(2, "dir")
	file := newFileNode(3, "file.txt", &mocks.MockBackend{})
	root.addChild(dir)
	dir.addChild(file)

	assert.Equal(t, "", root.Path())
	assert.Equal(t, "dir", dir.Path())
	assert.Equal(t, "dir/file.txt", file.Path())

	// a detached node has no parent to resolve a path from
	orphan := newFileNode(9, "orphan", &mocks.MockBackend{})
	assert.Equal(t, "", orphan.Path())
	assert.True(t, orphan.IsRoot())
}
