package blobstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

type object struct {
	body        []byte
	contentType string
}

// MemoryStore is an in-process store with the same create-only semantics as
// the durable stores.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]object)}
}

// Bucket returns the logical bucket name.
func (m *MemoryStore) Bucket() string { return m.bucket }

// Put stores a copy of body under key.
func (m *MemoryStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return fmt.Errorf("put %s: %w", key, domain.ErrKeyExists)
	}
	m.objects[key] = object{body: slices.Clone(body), contentType: contentType}
	return nil
}

// Get returns a copy of the body stored under key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
	}
	return slices.Clone(obj.body), nil
}

// List returns the keys starting with prefix in sorted order.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// ContentType returns the content type recorded for key.
func (m *MemoryStore) ContentType(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.contentType, ok
}

// Keys lists stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// CheckReadiness always succeeds.
func (m *MemoryStore) CheckReadiness(_ context.Context) error { return nil }
