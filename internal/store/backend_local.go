package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// LocalStore backs the store.type: local config key: one file per object,
// named by uuid, under a directory.
type LocalStore struct {
	dir string
}

// NewLocalStore returns a LocalStore rooted at dir, creating it if absent.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create local store dir %s: %v", ferrors.ErrStore, dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(uuid string) string {
	return filepath.Join(s.dir, uuid)
}

// Put writes data atomically: write to a temp file, then rename.
func (s *LocalStore) Put(_ context.Context, uuid string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, uuid+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp object for %s: %v", ferrors.ErrStore, uuid, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write object %s: %v", ferrors.ErrStore, uuid, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close object %s: %v", ferrors.ErrStore, uuid, err)
	}
	if err := os.Rename(tmpPath, s.path(uuid)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: commit object %s: %v", ferrors.ErrStore, uuid, err)
	}
	return nil
}

// Get reads the object named uuid.
func (s *LocalStore) Get(_ context.Context, uuid string) ([]byte, error) {
	data, err := os.ReadFile(s.path(uuid))
	if err != nil {
		return nil, fmt.Errorf("%w: read object %s: %v", ferrors.ErrStore, uuid, err)
	}
	return data, nil
}
