package adapters

import (
	"context"
	"time"

	"github.com/brettbedarf/manifestfs"
)

// RawProvider builds RawBackends whose content is the descriptor pointer itself.
// Every backend it creates reports the same owner and timestamps so repeated
// attribute queries are identical for the life of the mount.
type RawProvider struct {
	MountTime time.Time
	Uid       uint32
	Gid       uint32
}

func (p *RawProvider) NewBackend(pointer string) (manifestfs.Backend, error) {
	return &RawBackend{
		data:  []byte(pointer),
		mtime: p.MountTime,
		uid:   p.Uid,
		gid:   p.Gid,
	}, nil
}

// RawBackend implements [manifestfs.Backend] for content embedded in the manifest
type RawBackend struct {
	data  []byte
	mtime time.Time
	uid   uint32
	gid   uint32
}

// NewRawBackend returns a backend serving data with the given timestamp for atime, mtime and ctime
func NewRawBackend(data []byte, mtime time.Time) *RawBackend {
	return &RawBackend{data: data, mtime: mtime}
}

func (r *RawBackend) Attributes(ctx context.Context) (*manifestfs.Metadata, error) {
	size := uint64(len(r.data))
	return &manifestfs.Metadata{
		Size:   size,
		Blocks: manifestfs.BlocksFor(size),
		Kind:   manifestfs.FileKind,
		Perm:   0o644,
		Nlink:  1,
		Uid:    r.uid,
		Gid:    r.gid,
		Atime:  r.mtime,
		Mtime:  r.mtime,
		Ctime:  r.mtime,
	}, nil
}

func (r *RawBackend) Read(ctx context.Context, offset int64, p []byte) (int, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return 0, nil
	}
	return copy(p, r.data[offset:]), nil
}

var _ manifestfs.Backend = (*RawBackend)(nil)
