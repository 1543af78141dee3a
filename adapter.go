// Package manifestfs contains core domain types and interfaces for the manifest-backed
// read-only filesystem
package manifestfs

import (
	"context"
	"syscall"
	"time"
)

// Backend defines the operations for retrieving file data from a single content source.
// Instances are 1:1 with the file Node they are attached to and never change after the
// tree is built, so implementations must be safe for concurrent use.
type Backend interface {
	// Attributes returns the current metadata of the underlying content.
	// The returned Kind is always FileKind.
	Attributes(ctx context.Context) (*Metadata, error)

	// Read reads up to len(p) bytes into p starting at offset.
	// A short count signals exactly the bytes available; reading at or past the end
	// returns 0 and a nil error. io.EOF is never returned.
	Read(ctx context.Context, offset int64, p []byte) (int, error)
}

// EntryKind tags a node or directory entry as a file or a directory
type EntryKind uint8

const (
	FileKind EntryKind = iota
	DirKind
)

func (k EntryKind) String() string {
	if k == DirKind {
		return "dir"
	}
	return "file"
}

// Mode returns the S_IFMT bits for the kind
func (k EntryKind) Mode() uint32 {
	if k == DirKind {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

// Metadata contains standardized metadata across all backend types and directories
type Metadata struct {
	Size   uint64
	Blocks uint64 // 512-byte blocks
	Kind   EntryKind
	Perm   uint32 // permission bits only, i.e. 0644
	Nlink  uint32
	Uid    uint32
	Gid    uint32
	Atime  time.Time // Last accessed at
	Mtime  time.Time // Last modified at
	Ctime  time.Time // Last status change at
}

// BlocksFor returns the number of 512-byte blocks needed to hold size bytes
func BlocksFor(size uint64) uint64 {
	return (size + 511) / 512
}

// BackendResolver turns a manifest file descriptor ("<type>:<pointer>") into a Backend.
// Unknown types and descriptors without a separator fail with a *DescriptorError.
type BackendResolver interface {
	Resolve(descriptor string) (Backend, error)
}

// BackendProvider builds Backends for a single descriptor prefix.
// pointer is everything after the first ':' of the descriptor.
type BackendProvider interface {
	NewBackend(pointer string) (Backend, error)
}

// ProviderFunc adapts a plain function to a BackendProvider
type ProviderFunc func(pointer string) (Backend, error)

func (f ProviderFunc) NewBackend(pointer string) (Backend, error) {
	return f(pointer)
}
