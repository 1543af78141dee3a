package manifestfs

import (
	"errors"
	"fmt"
)

var (
	// ErrDescriptor reports a structurally invalid manifest or malformed file descriptor.
	// It is fatal at construction time.
	ErrDescriptor = errors.New("malformed manifest descriptor")

	// ErrNotFound reports an unknown identity, parent/name pair or wrong node kind for the request
	ErrNotFound = errors.New("no such entry")

	// ErrIO reports a failed local-file or network operation of a backend
	ErrIO = errors.New("backend i/o failure")
)

// DescriptorError describes why a manifest entry could not be turned into a node.
// errors.Is(err, ErrDescriptor) holds for every DescriptorError.
type DescriptorError struct {
	Path       string // slash-joined manifest path of the entry; "" for the root
	Descriptor string // offending descriptor, if the entry was a string
	Reason     string
}

func (e *DescriptorError) Error() string {
	msg := ErrDescriptor.Error()
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	if e.Descriptor != "" {
		msg += fmt.Sprintf(" (%q)", e.Descriptor)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *DescriptorError) Is(target error) bool {
	return target == ErrDescriptor
}
