package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brettbedarf/manifestfs"
	"github.com/brettbedarf/manifestfs/internal/util"
	"golang.org/x/sys/unix"
)

// LocalProvider builds LocalBackends delegating to files on the host filesystem.
// The path is not checked until the first request so a manifest can reference
// files that appear after mount.
type LocalProvider struct{}

func (p *LocalProvider) NewBackend(pointer string) (manifestfs.Backend, error) {
	if pointer == "" {
		return nil, errors.New("empty file path")
	}
	return &LocalBackend{path: pointer}, nil
}

// LocalBackend implements [manifestfs.Backend] by delegating to a host file
type LocalBackend struct {
	path string
}

// NewLocalBackend returns a backend reading from path
func NewLocalBackend(path string) *LocalBackend {
	return &LocalBackend{path: path}
}

// Path returns the delegate path on the host
func (l *LocalBackend) Path() string {
	return l.path
}

func (l *LocalBackend) Attributes(ctx context.Context) (*manifestfs.Metadata, error) {
	var st unix.Stat_t
	if err := unix.Stat(l.path, &st); err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", manifestfs.ErrIO, l.path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return nil, fmt.Errorf("%w: %s is not a regular file", manifestfs.ErrIO, l.path)
	}

	size := uint64(st.Size)
	return &manifestfs.Metadata{
		Size:   size,
		Blocks: manifestfs.BlocksFor(size),
		Kind:   manifestfs.FileKind,
		Perm:   st.Mode & 0o7777,
		Nlink:  uint32(st.Nlink),
		Uid:    st.Uid,
		Gid:    st.Gid,
		Atime:  time.Unix(st.Atim.Unix()),
		Mtime:  time.Unix(st.Mtim.Unix()),
		Ctime:  time.Unix(st.Ctim.Unix()),
	}, nil
}

func (l *LocalBackend) Read(ctx context.Context, offset int64, p []byte) (int, error) {
	logger := util.GetLogger("LocalBackend.Read")

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := os.Open(l.path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", manifestfs.ErrIO, l.path, err)
	}
	defer f.Close()

	n, err := f.ReadAt(p, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: read %s: %w", manifestfs.ErrIO, l.path, err)
	}
	logger.Trace().Str("path", l.path).Int64("offset", offset).Int("n", n).Msg("read")
	return n, nil
}

var _ manifestfs.Backend = (*LocalBackend)(nil)
