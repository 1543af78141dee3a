package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brettbedarf/manifestfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "delegate.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	require.NoError(t, os.Chmod(path, 0o640))
	return path
}

func TestLocalProvider_NewBackend(t *testing.T) {
	t.Parallel()

	p := &LocalProvider{}

	b, err := p.NewBackend("/does/not/exist/yet")
	require.NoError(t, err, "paths are checked lazily")
	assert.Equal(t, "/does/not/exist/yet", b.(*LocalBackend).Path())

	_, err = p.NewBackend("")
	assert.Error(t, err)
}

func TestLocalBackend_Attributes(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "hello local")
	mtime := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	meta, err := NewLocalBackend(path).Attributes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(11), meta.Size)
	assert.Equal(t, uint64(1), meta.Blocks)
	assert.Equal(t, manifestfs.FileKind, meta.Kind)
	assert.Equal(t, uint32(0o640), meta.Perm)
	assert.Equal(t, uint32(1), meta.Nlink)
	assert.Equal(t, uint32(os.Getuid()), meta.Uid)
	assert.True(t, mtime.Equal(meta.Mtime), "mtime %v", meta.Mtime)
	assert.True(t, mtime.Equal(meta.Atime), "atime %v", meta.Atime)
}

func TestLocalBackend_AttributesMissing(t *testing.T) {
	t.Parallel()

	b := NewLocalBackend(filepath.Join(t.TempDir(), "missing"))
	_, err := b.Attributes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, manifestfs.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalBackend_AttributesNotRegular(t *testing.T) {
	t.Parallel()

	_, err := NewLocalBackend(t.TempDir()).Attributes(context.Background())
	assert.ErrorIs(t, err, manifestfs.ErrIO)
}

func TestLocalBackend_Read(t *testing.T) {
	t.Parallel()

	b := NewLocalBackend(writeTempFile(t, "0123456789"))

	tests := []struct {
		name   string
		offset int64
		size   int
		want   string
	}{
		{"whole file", 0, 10, "0123456789"},
		{"middle", 2, 3, "234"},
		{"short read at end", 7, 10, "789"},
		{"offset at end", 10, 5, ""},
		{"offset past end", 100, 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			n, err := b.Read(context.Background(), tt.offset, buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}
}

func TestLocalBackend_ReadMissing(t *testing.T) {
	t.Parallel()

	b := NewLocalBackend(filepath.Join(t.TempDir(), "missing"))
	n, err := b.Read(context.Background(), 0, make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, manifestfs.ErrIO)
}

func TestLocalBackend_ReadSeesChanges(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "old")
	b := NewLocalBackend(path)

	buf := make([]byte, 8)
	n, err := b.Read(context.Background(), 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "old", string(buf[:n]))

	require.NoError(t, os.WriteFile(path, []byte("newer"), 0o640))
	n, err = b.Read(context.Background(), 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "newer", string(buf[:n]))
}

func TestRawBackend(t *testing.T) {
	t.Parallel()

	mountTime := time.Unix(1_650_000_000, 0)
	p := &RawProvider{MountTime: mountTime, Uid: 42, Gid: 43}
	b, err := p.NewBackend("abc")
	require.NoError(t, err)

	t.Run("attributes", func(t *testing.T) {
		meta, err := b.Attributes(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &manifestfs.Metadata{
			Size:   3,
			Blocks: 1,
			Kind:   manifestfs.FileKind,
			Perm:   0o644,
			Nlink:  1,
			Uid:    42,
			Gid:    43,
			Atime:  mountTime,
			Mtime:  mountTime,
			Ctime:  mountTime,
		}, meta)

		again, err := b.Attributes(context.Background())
		require.NoError(t, err)
		assert.Equal(t, meta, again, "attributes are stable")
	})

	t.Run("read bounds", func(t *testing.T) {
		tests := []struct {
			offset int64
			size   int
			want   string
		}{
			{0, 3, "abc"},
			{0, 100, "abc"},
			{1, 1, "b"},
			{2, 5, "c"},
			{3, 1, ""},
			{1000, 1, ""},
			{-1, 1, ""},
		}
		for _, tt := range tests {
			buf := make([]byte, tt.size)
			n, err := b.Read(context.Background(), tt.offset, buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(buf[:n]), "offset %d size %d", tt.offset, tt.size)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		empty := NewRawBackend(nil, mountTime)
		meta, err := empty.Attributes(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(0), meta.Size)
		assert.Equal(t, uint64(0), meta.Blocks)

		n, err := empty.Read(context.Background(), 0, make([]byte, 4))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}
