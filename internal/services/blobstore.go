package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore keeps evidence bytes. Paths it returns are opaque relative references.
type BlobStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// LocalBlobStore writes blobs under a directory on disk.
type LocalBlobStore struct {
	dir string
}

func NewLocalBlobStore(dir string) *LocalBlobStore {
	return &LocalBlobStore{dir: dir}
}

func (s *LocalBlobStore) Put(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return path.Join(filepath.ToSlash(filepath.Base(s.dir)), name), nil
}

func (s *LocalBlobStore) Delete(_ context.Context, ref string) error {
	name := path.Base(ref)
	if name == "." || name == "/" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
