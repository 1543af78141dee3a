// Package fuse adapts the manifest filesystem to the low-level FUSE wire protocol.
package fuse

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/brettbedarf/manifestfs"
	"github.com/brettbedarf/manifestfs/filesystem"
	"github.com/brettbedarf/manifestfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sys/unix"
)

const (
	blockSize = 4096
	nameMax   = 255
)

// FuseRaw implements the low-level FUSE wire protocol
// It serves as protocol adapter between the FUSE and core filesystem
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	fs       *filesystem.FileSystem
	server   *fuse.Server
	lookups  *xsync.Map[uint64, uint64] // outstanding kernel lookups per identity
	entryTTL time.Duration
	attrTTL  time.Duration
	directIO bool
}

func NewFuseRaw(fs *filesystem.FileSystem) *FuseRaw {
	cfg := fs.Config()
	return &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
		lookups:       xsync.NewMap[uint64, uint64](),
		entryTTL:      cfg.EntryTTL(),
		attrTTL:       cfg.AttrTTL(),
		directIO:      cfg.DirectIO,
	}
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Int("nodes", r.fs.Index().Len()).Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "manifestfs"
}

// LookupCount returns the number of kernel references held on identity id
func (r *FuseRaw) LookupCount(id uint64) uint64 {
	n, _ := r.lookups.Load(id)
	return n
}

func (r *FuseRaw) addLookup(id uint64) {
	r.lookups.Compute(id, func(old uint64, loaded bool) (uint64, xsync.ComputeOp) {
		return old + 1, xsync.UpdateOp
	})
}

// Access called when the kernel wants to know if the user has permission to access the node.
// If the 'default_permissions' mount option is given, this method is not called.
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	logger := util.GetLogger("Fuse.Access")
	logger.Trace().Uint64("id", input.NodeId).Uint32("mask", input.Mask).Msg("Access called")

	if _, ok := r.fs.Index().Node(input.NodeId); !ok {
		return fuse.ENOENT
	}
	if input.Mask&unix.W_OK != 0 {
		return fuse.EROFS
	}
	return fuse.OK
}

// Lookup is called by the kernel when the VFS wants to know
// about a file inside a directory. Many lookup calls can
// occur in parallel, but only one call happens for each (dir,
// name) pair.
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Debug().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	ctx, done := newContext(cancel)
	defer done()

	node, meta, err := r.fs.Lookup(ctx, header.NodeId, name)
	if err != nil {
		return toStatus(err)
	}
	r.fillEntry(node.ID(), meta, out)
	r.addLookup(node.ID())
	return fuse.OK
}

func (r *FuseRaw) fillEntry(id uint64, meta *manifestfs.Metadata, out *fuse.EntryOut) {
	out.NodeId = id
	out.Attr = toAttr(id, meta)
	out.SetEntryTimeout(r.entryTTL)
	out.SetAttrTimeout(r.attrTTL)
}

// Forget is called when the kernel discards entries from its
// dentry cache. This happens on unmount, and when the kernel
// is short on memory. Since it is not guaranteed to occur at
// any moment, and since there is no return value, Forget
// should not do I/O, as there is no channel to report back
// I/O errors.
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {
	logger := util.GetLogger("Fuse.Forget")
	logger.Trace().Uint64("id", nodeid).Uint64("nlookup", nlookup).Msg("Forget called")

	r.lookups.Compute(nodeid, func(old uint64, loaded bool) (uint64, xsync.ComputeOp) {
		if !loaded || old <= nlookup {
			return 0, xsync.DeleteOp
		}
		return old - nlookup, xsync.UpdateOp
	})
}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	logger := util.GetLogger("Fuse.GetAttr")
	logger.Trace().Uint64("id", input.NodeId).Msg("GetAttr called")

	ctx, done := newContext(cancel)
	defer done()

	meta, err := r.fs.GetAttributes(ctx, input.NodeId)
	if err != nil {
		return toStatus(err)
	}
	out.Attr = toAttr(input.NodeId, meta)
	out.SetTimeout(r.attrTTL)
	return fuse.OK
}

// Open checks the node is a regular file opened read-only. No handle state is kept.
func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	logger := util.GetLogger("Fuse.Open")
	logger.Debug().Uint64("id", input.NodeId).Uint32("flags", input.Flags).Msg("Open called")

	node, ok := r.fs.Index().Node(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if node.IsDir() {
		return fuse.EISDIR
	}
	if input.Flags&syscall.O_ACCMODE != syscall.O_RDONLY || input.Flags&syscall.O_TRUNC != 0 {
		return fuse.EROFS
	}
	if r.directIO {
		out.OpenFlags |= fuse.FOPEN_DIRECT_IO
	}
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	logger := util.GetLogger("Fuse.Read")
	logger.Trace().
		Uint64("id", input.NodeId).
		Uint64("offset", input.Offset).
		Uint32("size", input.Size).
		Msg("Read called")

	ctx, done := newContext(cancel)
	defer done()

	size := min(int(input.Size), len(buf))
	n, err := r.fs.Read(ctx, input.NodeId, int64(input.Offset), buf[:size])
	if err != nil {
		logger.Warn().Err(err).Uint64("id", input.NodeId).Msg("Read failed")
		return nil, toStatus(err)
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	logger := util.GetLogger("Fuse.OpenDir")
	logger.Debug().Uint64("id", input.NodeId).Msg("OpenDir called")

	node, ok := r.fs.Index().Node(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if !node.IsDir() {
		return fuse.ENOTDIR
	}
	return fuse.OK
}

// ReadDir emits listing entries starting at input.Offset. Each entry's Off is
// its position + 1 so the kernel resumes right after the last entry it kept.
func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")
	logger.Debug().Uint64("id", input.NodeId).Uint64("offset", input.Offset).Msg("ReadDir called")

	err := r.fs.ReadDirectory(input.NodeId, input.Offset, func(e filesystem.DirEntry, cursor uint64) bool {
		// The buffer is full; the kernel calls again from the last cursor it kept
		return out.AddDirEntry(toDirEntry(e, cursor))
	})
	return toStatus(err)
}

// ReadDirPlus is ReadDir with attributes for every real child. The synthesized "."
// and ".." entries carry no EntryOut and add no kernel reference.
func (r *FuseRaw) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDirPlus")
	logger.Debug().Uint64("id", input.NodeId).Uint64("offset", input.Offset).Msg("ReadDirPlus called")

	ctx, done := newContext(cancel)
	defer done()

	err := r.fs.ReadDirectory(input.NodeId, input.Offset, func(e filesystem.DirEntry, cursor uint64) bool {
		entryOut := out.AddDirLookupEntry(toDirEntry(e, cursor))
		if entryOut == nil {
			return false
		}
		if e.Name == "." || e.Name == ".." {
			return true
		}
		meta, err := r.fs.GetAttributes(ctx, e.ID)
		if err != nil {
			// Leave NodeId zero so the kernel falls back to Lookup
			logger.Debug().Err(err).Uint64("id", e.ID).Msg("No attributes for entry")
			return true
		}
		r.fillEntry(e.ID, meta, entryOut)
		r.addLookup(e.ID)
		return true
	})
	return toStatus(err)
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	logger := util.GetLogger("Fuse.StatFs")
	logger.Trace().Msg("StatFs called")

	out.Bsize = blockSize
	out.Frsize = blockSize
	out.NameLen = nameMax
	out.Files = uint64(r.fs.Index().Len())
	out.Ffree = 0
	out.Blocks = 0
	out.Bfree = 0
	out.Bavail = 0
	return fuse.OK
}

// newContext derives a context canceled when the kernel interrupts the request
func newContext(cancel <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, done := context.WithCancel(context.Background())
	if cancel != nil {
		go func() {
			select {
			case <-cancel:
				done()
			case <-ctx.Done():
			}
		}()
	}
	return ctx, done
}

// toStatus maps filesystem errors to FUSE status codes
func toStatus(err error) fuse.Status {
	switch {
	case err == nil:
		return fuse.OK
	case errors.Is(err, manifestfs.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fuse.EINTR
	default:
		return fuse.EIO
	}
}

func toDirEntry(e filesystem.DirEntry, cursor uint64) fuse.DirEntry {
	return fuse.DirEntry{
		Mode: e.Kind.Mode(),
		Name: e.Name,
		Ino:  e.ID,
		Off:  cursor,
	}
}

// toAttr converts metadata into wire attributes for node id
func toAttr(id uint64, meta *manifestfs.Metadata) fuse.Attr {
	attr := fuse.Attr{
		Ino:     id,
		Size:    meta.Size,
		Blocks:  meta.Blocks,
		Mode:    meta.Kind.Mode() | meta.Perm,
		Nlink:   meta.Nlink,
		Owner:   fuse.Owner{Uid: meta.Uid, Gid: meta.Gid},
		Blksize: blockSize,
	}
	attr.SetTimes(&meta.Atime, &meta.Mtime, &meta.Ctime)
	return attr
}
