package file

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// RawSource is a datalake.RawSource over the files under a root directory
// matching a glob pattern.
type RawSource struct {
	root    string
	files   []string
	fileIdx *uint64
}

// NewRawSource gets a RawSource for the regular files under root which match
// pattern. pattern uses forward slashes and the syntax of filepath.Match. It
// returns datalake.ErrNoInput if nothing matches.
func NewRawSource(root, pattern string) (*RawSource, error) {
	fileIdx := uint64(0)
	s := &RawSource{
		root:    root,
		fileIdx: &fileIdx,
	}
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrap(err, "statting root")
	}
	matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, errors.Wrapf(err, "globbing %s", pattern)
	}
	s.files = make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, errors.Wrap(err, "statting match")
		}
		if info.IsDir() {
			continue
		}
		s.files = append(s.files, m)
	}
	if len(s.files) == 0 {
		return nil, errors.Wrapf(datalake.ErrNoInput, "%s in %s", pattern, root)
	}
	sort.Strings(s.files)
	return s, nil
}

// Len returns the number of files in the source.
func (s *RawSource) Len() int { return len(s.files) }

type metaFile struct {
	*os.File
	name string
	size int64
}

// Name returns the path of the file relative to the source root.
func (m *metaFile) Name() string { return m.name }

func (m *metaFile) Meta() map[string]interface{} {
	return map[string]interface{}{"size": m.size}
}

// NextReader implements datalake.RawSource. It is safe for concurrent use.
func (s *RawSource) NextReader() (datalake.NamedReadCloser, error) {
	idx := atomic.AddUint64(s.fileIdx, 1) - 1
	if int(idx) >= len(s.files) {
		return nil, io.EOF
	}

	fname := s.files[idx]
	file, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", fname)
	}
	mf := &metaFile{File: file, name: fname}
	if rel, err := filepath.Rel(s.root, fname); err == nil {
		mf.name = filepath.ToSlash(rel)
	}
	if info, err := file.Stat(); err == nil {
		mf.size = info.Size()
	}
	return mf, nil
}
