package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/spsc/goldledger/internal/store"
)

// MockKV is a mock implementation of store.KV
type MockKV struct {
	mock.Mock
}

func (m *MockKV) CreateOrReplace(ctx context.Context, collection, key string, value any) error {
	args := m.Called(ctx, collection, key, value)
	return args.Error(0)
}

func (m *MockKV) Patch(ctx context.Context, collection, key string, fields map[string]any) error {
	args := m.Called(ctx, collection, key, fields)
	return args.Error(0)
}

func (m *MockKV) Delete(ctx context.Context, collection, key string) error {
	args := m.Called(ctx, collection, key)
	return args.Error(0)
}

func (m *MockKV) Exists(ctx context.Context, collection, key string) (bool, error) {
	args := m.Called(ctx, collection, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockKV) Push(ctx context.Context, collection string, value any) (string, error) {
	args := m.Called(ctx, collection, value)
	return args.String(0), args.Error(1)
}

func (m *MockKV) Snapshot(ctx context.Context, collection string) (*store.Snapshot, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Snapshot), args.Error(1)
}

func (m *MockKV) Subscribe(ctx context.Context, collection string, fn func(*store.Snapshot)) (store.UnsubscribeFunc, error) {
	args := m.Called(ctx, collection, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(store.UnsubscribeFunc), args.Error(1)
}

// MockBlobStore is a mock implementation of store.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, name, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Open(ctx context.Context, id string) (*store.Blob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Blob), args.Error(1)
}
