package file

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// Store is a datalake.Store on the local filesystem. Keys are slash
// separated paths relative to the store's root directory.
type Store struct {
	root string
}

// NewStore gets a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Open implements datalake.Store.
func (s *Store) Open(ctx context.Context, pattern string) (datalake.RawSource, error) {
	return NewRawSource(s.root, pattern)
}

// Create implements datalake.Store. Missing parent directories are created.
func (s *Store) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, errors.Wrap(err, "making parent directories")
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, errors.Wrap(err, "creating file")
	}
	return f, nil
}

// RemoveAll implements datalake.Store. It refuses to remove the root itself.
func (s *Store) RemoveAll(ctx context.Context, prefix string) error {
	p := s.path(prefix)
	if filepath.Clean(p) == filepath.Clean(s.root) {
		return errors.Errorf("refusing to remove store root %s", s.root)
	}
	return errors.Wrapf(os.RemoveAll(p), "removing %s", p)
}

func (s *Store) String() string { return s.root }
