/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package objstorage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage is an in-memory Storage implementation. Intended for tests and local runs.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	folders map[string]struct{}
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string][]byte),
		folders: make(map[string]struct{}),
	}
}

// EnsureFolder makes sure the folder with the given name exists.
func (s *MemoryStorage) EnsureFolder(_ context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("folder name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[name] = struct{}{}
	return nil
}

// Upload stores the object content under the given key.
func (s *MemoryStorage) Upload(_ context.Context, params UploadParams, content io.Reader) (StoredObject, error) {
	if params.Key == "" {
		return StoredObject{}, fmt.Errorf("object key is required")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return StoredObject{}, fmt.Errorf("read content: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[params.Key] = data
	return StoredObject{Key: params.Key, URL: "memory://" + params.Key, Size: int64(len(data))}, nil
}

// ObjectURL returns a URL by which the object with the given key can be downloaded.
func (s *MemoryStorage) ObjectURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("object %q not found", key)
	}
	return "memory://" + key, nil
}

// Object returns the stored content of the object with the given key.
func (s *MemoryStorage) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}
