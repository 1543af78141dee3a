package mocks

import (
	"context"

	"github.com/brettbedarf/manifestfs"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements manifestfs.Backend for testing across packages
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Attributes(ctx context.Context) (*manifestfs.Metadata, error) {
	args := m.Called(ctx)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context) *manifestfs.Metadata); ok {
		return fn(ctx), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manifestfs.Metadata), args.Error(1)
}

func (m *MockBackend) Read(ctx context.Context, offset int64, p []byte) (int, error) {
	args := m.Called(ctx, offset, p)

	// Handle function return types (for tests that fill the buffer)
	if fn, ok := args.Get(0).(func(context.Context, int64, []byte) int); ok {
		return fn(ctx, offset, p), args.Error(1)
	}

	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(int), args.Error(1)
}

var _ manifestfs.Backend = (*MockBackend)(nil)

// MockBackendProvider implements manifestfs.BackendProvider for testing across packages
type MockBackendProvider struct {
	mock.Mock
}

func (m *MockBackendProvider) NewBackend(pointer string) (manifestfs.Backend, error) {
	args := m.Called(pointer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(manifestfs.Backend), args.Error(1)
}

var _ manifestfs.BackendProvider = (*MockBackendProvider)(nil)

// MockResolver implements manifestfs.BackendResolver for testing across packages
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(descriptor string) (manifestfs.Backend, error) {
	args := m.Called(descriptor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(manifestfs.Backend), args.Error(1)
}

var _ manifestfs.BackendResolver = (*MockResolver)(nil)
