package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brettbedarf/manifestfs"
	"github.com/brettbedarf/manifestfs/config"
	"github.com/brettbedarf/manifestfs/internal/util"
	"github.com/brettbedarf/manifestfs/manifest"
)

// FileSystem answers identity-based requests against an immutable manifest tree.
// All state is built before the first request and only read afterwards, so every
// method is safe for concurrent use without locking.
type FileSystem struct {
	cfg       *config.Config
	root      *Node
	index     *Index
	mountTime time.Time // timestamp of all directories
	uid       uint32
	gid       uint32
}

// Option customizes a FileSystem at construction
type Option func(fs *FileSystem)

// WithClock sets the clock read once at construction to stamp directories
func WithClock(now func() time.Time) Option {
	return func(fs *FileSystem) {
		fs.mountTime = now()
	}
}

// WithOwner sets the owner reported for directories
func WithOwner(uid, gid uint32) Option {
	return func(fs *FileSystem) {
		fs.uid = uid
		fs.gid = gid
	}
}

// NewFS indexes the tree rooted at root. Directories are owned by the process
// uid/gid and stamped with the current time unless overridden by opts.
func NewFS(cfg *config.Config, root *Node, opts ...Option) (*FileSystem, error) {
	index, err := NewIndex(root)
	if err != nil {
		return nil, err
	}
	fs := &FileSystem{
		cfg:       cfg,
		root:      root,
		index:     index,
		mountTime: time.Now(),
		uid:       uint32(os.Getuid()),
		gid:       uint32(os.Getgid()),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// Load builds the tree from a parsed manifest and indexes it
func Load(cfg *config.Config, v *manifest.Value, resolver manifestfs.BackendResolver, opts ...Option) (*FileSystem, error) {
	root, err := Build(v, resolver)
	if err != nil {
		return nil, err
	}
	return NewFS(cfg, root, opts...)
}

func (fs *FileSystem) Config() *config.Config {
	return fs.cfg
}

func (fs *FileSystem) Root() *Node {
	return fs.root
}

func (fs *FileSystem) Index() *Index {
	return fs.index
}

// Lookup finds the child called name of directory parentID and returns it with its metadata.
// It fails with ErrNotFound when parentID is unknown, is not a directory or has no such child.
func (fs *FileSystem) Lookup(ctx context.Context, parentID uint64, name string) (*Node, *manifestfs.Metadata, error) {
	logger := util.GetLogger("FS.Lookup")
	logger.Trace().Uint64("parent", parentID).Str("name", name).Msg("Lookup called")

	parent, ok := fs.index.Node(parentID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: identity %d", manifestfs.ErrNotFound, parentID)
	}
	if !parent.IsDir() {
		return nil, nil, fmt.Errorf("%w: identity %d is not a directory", manifestfs.ErrNotFound, parentID)
	}
	child, ok := parent.GetChild(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q in directory %d", manifestfs.ErrNotFound, name, parentID)
	}

	meta, err := fs.attributes(ctx, child)
	if err != nil {
		return nil, nil, err
	}
	return child, meta, nil
}

// LookupPath resolves a slash-separated path from the root, e.g. "/a/b"
func (fs *FileSystem) LookupPath(ctx context.Context, path string) (*Node, *manifestfs.Metadata, error) {
	node, ok := Resolve(fs.root, path)
	if !ok {
		return nil, nil, fmt.Errorf("%w: path %q", manifestfs.ErrNotFound, path)
	}
	meta, err := fs.attributes(ctx, node)
	if err != nil {
		return nil, nil, err
	}
	return node, meta, nil
}

// GetAttributes returns the metadata of node id. Directory metadata is synthesized,
// file metadata comes from the node's backend.
func (fs *FileSystem) GetAttributes(ctx context.Context, id uint64) (*manifestfs.Metadata, error) {
	logger := util.GetLogger("FS.GetAttributes")
	logger.Trace().Uint64("id", id).Msg("GetAttributes called")

	node, ok := fs.index.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: identity %d", manifestfs.ErrNotFound, id)
	}
	return fs.attributes(ctx, node)
}

func (fs *FileSystem) attributes(ctx context.Context, n *Node) (*manifestfs.Metadata, error) {
	if n.IsDir() {
		return fs.dirMetadata(), nil
	}
	meta, err := n.backend.Attributes(ctx)
	if err != nil {
		util.GetLogger("FS.attributes").Warn().Err(err).Str("path", n.Path()).Msg("Backend attributes failed")
		return nil, asIOError(ctx, err)
	}
	return meta, nil
}

// dirMetadata stamps directories with the mount time so repeated lookup and getattr calls agree
func (fs *FileSystem) dirMetadata() *manifestfs.Metadata {
	return &manifestfs.Metadata{
		Kind:  manifestfs.DirKind,
		Perm:  0o755,
		Nlink: 2,
		Uid:   fs.uid,
		Gid:   fs.gid,
		Atime: fs.mountTime,
		Mtime: fs.mountTime,
		Ctime: fs.mountTime,
	}
}

// Read reads up to len(p) bytes of file id starting at offset.
// Reading at or past the end returns 0 and no error.
func (fs *FileSystem) Read(ctx context.Context, id uint64, offset int64, p []byte) (int, error) {
	logger := util.GetLogger("FS.Read")
	logger.Trace().Uint64("id", id).Int64("offset", offset).Int("size", len(p)).Msg("Read called")

	node, ok := fs.index.Node(id)
	if !ok {
		return 0, fmt.Errorf("%w: identity %d", manifestfs.ErrNotFound, id)
	}
	if node.IsDir() {
		return 0, fmt.Errorf("%w: identity %d is a directory", manifestfs.ErrNotFound, id)
	}

	n, err := node.backend.Read(ctx, offset, p)
	if err != nil {
		logger.Warn().Err(err).Str("path", node.Path()).Msg("Backend read failed")
		return 0, asIOError(ctx, err)
	}
	return n, nil
}

// DirSink receives directory entries during ReadDirectory. cursor is the value a
// caller passes as start to resume after entry. Returning false stops enumeration.
type DirSink func(entry DirEntry, cursor uint64) bool

// ReadDirectory emits the listing of directory id from position start on until
// the listing ends or sink returns false. A start at or past the end emits nothing.
func (fs *FileSystem) ReadDirectory(id uint64, start uint64, sink DirSink) error {
	logger := util.GetLogger("FS.ReadDirectory")
	logger.Trace().Uint64("id", id).Uint64("start", start).Msg("ReadDirectory called")

	entries, ok := fs.index.Listing(id)
	if !ok {
		return fmt.Errorf("%w: directory %d", manifestfs.ErrNotFound, id)
	}
	for pos := start; pos < uint64(len(entries)); pos++ {
		if !sink(entries[pos], pos+1) {
			break
		}
	}
	return nil
}

// asIOError makes sure backend failures surface as ErrIO unless the request was canceled
func asIOError(ctx context.Context, err error) error {
	if errors.Is(err, manifestfs.ErrIO) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return fmt.Errorf("%w: %w", manifestfs.ErrIO, err)
}
