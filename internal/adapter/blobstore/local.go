package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// LocalStore persists records as files under a base directory, one file per
// key. It is meant for development and tests.
type LocalStore struct {
	basePath string
	bucket   string
}

// NewLocalStore creates the base directory if needed. The bucket name is
// reported back in stage results and also namespaces the files on disk.
func NewLocalStore(basePath, bucket string) (*LocalStore, error) {
	root := filepath.Join(basePath, bucket)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &LocalStore{basePath: root, bucket: bucket}, nil
}

// Bucket returns the logical bucket name.
func (l *LocalStore) Bucket() string { return l.bucket }

// Put writes body to the key's file. An existing file fails with
// domain.ErrKeyExists; partial files are removed on write failure.
func (l *LocalStore) Put(ctx context.Context, key string, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("put %s: %w", key, domain.ErrKeyExists)
		}
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: close %s: %v", domain.ErrStorage, key, err)
	}
	return nil
}

// Get reads the key's file.
func (l *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return data, nil
}

// List walks the directory holding prefix and returns the matching keys in
// sorted order. A prefix whose directory does not exist lists nothing.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := l.basePath
	if dir := prefix[:strings.LastIndex(prefix, "/")+1]; dir != "" {
		p, err := l.fullPath(dir)
		if err != nil {
			return nil, err
		}
		root = p
	}

	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStorage, prefix, err)
	}
	slices.Sort(keys)
	return keys, nil
}

// CheckReadiness verifies the base directory is still present.
func (l *LocalStore) CheckReadiness(_ context.Context) error {
	if _, err := os.Stat(l.basePath); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// fullPath maps a key onto the filesystem, rejecting keys that would escape
// the base directory.
func (l *LocalStore) fullPath(key string) (string, error) {
	if key == "" {
		return "", &domain.MissingFieldError{Field: "key"}
	}
	p := filepath.Join(l.basePath, filepath.FromSlash(key))
	if p != l.basePath && !strings.HasPrefix(p, l.basePath+string(filepath.Separator)) {
		return "", &domain.InvalidFieldError{Field: "key", Reason: "escapes storage root: " + key}
	}
	return p, nil
}
