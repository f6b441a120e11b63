package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore is the evidence blob store collaborator.
type BlobStore interface {
	// Put writes a blob under bucket/key.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// Get reads the blob at bucket/key.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// FSStore implements BlobStore on the local filesystem, one directory
// per bucket under the configured root.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem blob store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("evidence directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create evidence directory: %w", err)
	}
	return &FSStore{root: dir}, nil
}

// Put writes a blob. The content type is ignored; the filesystem keeps
// no metadata.
func (s *FSStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := validateName(bucket); err != nil {
		return fmt.Errorf("invalid bucket: %w", err)
	}
	if err := validateName(key); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}

	dir := filepath.Join(s.root, bucket)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create bucket directory: %w", err)
	}

	path := filepath.Join(dir, key)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

// Get reads a blob.
func (s *FSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validateName(bucket); err != nil {
		return nil, fmt.Errorf("invalid bucket: %w", err)
	}
	if err := validateName(key); err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(s.root, bucket, key))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// validateName rejects names that could escape the store root. Keys are
// generated internally, but Get serves request input.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("name contains path separators: %q", name)
	}
	return nil
}
