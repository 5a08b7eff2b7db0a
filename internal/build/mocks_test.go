package build

import (
	"context"
	"sync/atomic"

	"fnforge/internal/model"
	"fnforge/internal/store"
)

// MockAdapter implements model.Adapter for testing. Calls counts every
// Chat and Complete invocation.
type MockAdapter struct {
	ChatFunc     func(ctx context.Context, msgs []model.Message, opts model.CallOptions) (string, error)
	CompleteFunc func(ctx context.Context, prompt string, opts model.CallOptions) (string, error)
	Calls        atomic.Int64
}

func (m *MockAdapter) Chat(ctx context.Context, msgs []model.Message, opts model.CallOptions) (string, error) {
	m.Calls.Add(1)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, msgs, opts)
	}
	return "```go\nfunc double(n int) int { return n * 2 }\n```", nil
}

func (m *MockAdapter) Complete(ctx context.Context, prompt string, opts model.CallOptions) (string, error) {
	m.Calls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, opts)
	}
	return "```go\nfunc double(n int) int { return n * 2 }\n```", nil
}

// MockResolver hands out a fixed adapter for every descriptor.
type MockResolver struct {
	Adapter model.Adapter
}

func (m *MockResolver) AdapterFor(ctx context.Context, d model.Descriptor) (model.Adapter, error) {
	return m.Adapter, nil
}

// MockStore implements store.Store for failure injection.
type MockStore struct {
	SaveFunc         func(ctx context.Context, kind, name string, data []byte) (string, error)
	LoadFunc         func(ctx context.Context, kind, name, version string) ([]byte, error)
	ListVersionsFunc func(ctx context.Context, kind, name string) ([]store.Version, error)
	ListFunc         func(ctx context.Context, kind string) ([]string, error)
}

func (m *MockStore) Save(ctx context.Context, kind, name string, data []byte) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, kind, name, data)
	}
	return "mock-version", nil
}

func (m *MockStore) Load(ctx context.Context, kind, name, version string) ([]byte, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, kind, name, version)
	}
	return nil, &store.PersistenceError{Op: "load", Kind: kind, Name: name, Err: store.ErrNotFound}
}

func (m *MockStore) ListVersions(ctx context.Context, kind, name string) ([]store.Version, error) {
	if m.ListVersionsFunc != nil {
		return m.ListVersionsFunc(ctx, kind, name)
	}
	return nil, nil
}

func (m *MockStore) List(ctx context.Context, kind string) ([]string, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, kind)
	}
	return nil, nil
}

func (m *MockStore) Close() error { return nil }

var _ model.Adapter = (*MockAdapter)(nil)
var _ model.AdapterResolver = (*MockResolver)(nil)
var _ store.Store = (*MockStore)(nil)
