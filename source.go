package datalake

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// OriginKey is the key under which sources store the "<object>#<line>" origin
// of each record.
const OriginKey = "#@!origin"

// ErrNoInput is returned by Store.Open when a pattern matches no objects.
var ErrNoInput = errors.New("no objects matched")

// Source is the interface for getting raw data one record at a time. Record
// returns io.EOF once the source is exhausted.
type Source interface {
	Record() (interface{}, error)
}

// NamedReadCloser is an io.ReadCloser which knows the name of the object it
// is reading.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
	Meta() map[string]interface{}
}

// RawSource hands out readers for a set of objects. Implementations must be
// safe to call from multiple goroutines, and return io.EOF when every object
// has been handed out.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}

// Store is a bucket or directory that tables are read from and written to.
// Keys are slash separated and relative to the root of the store.
type Store interface {
	// Open returns a RawSource over every object whose key matches pattern.
	// A '*' in the pattern never crosses a '/'. If nothing matches, the
	// returned error has ErrNoInput as its cause.
	Open(ctx context.Context, pattern string) (RawSource, error)
	// Create returns a writer for a new object at key. The object is
	// complete once Close returns without error.
	Create(ctx context.Context, key string) (io.WriteCloser, error)
	// RemoveAll deletes every object under prefix.
	RemoveAll(ctx context.Context, prefix string) error
	fmt.Stringer
}

// RecordError is returned from Source.Record when a single record could not
// be decoded or parsed. The source remains usable after a RecordError.
type RecordError struct {
	Origin string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.Origin, e.Err)
}

// Cause implements the causer interface of github.com/pkg/errors.
func (e *RecordError) Cause() error { return e.Err }

func (e *RecordError) Unwrap() error { return e.Err }
