package datalake

import (
	"context"
	"io"
)

// Row is a single row of an output table.
type Row interface {
	// Key is a canonical encoding of every column of the row. Two rows have
	// equal keys exactly when all of their columns are equal.
	Key() []byte
	// Record maps each column of the row's table to its value. Null values
	// are nil.
	Record() map[string]interface{}
}

// Format encodes rows of a table into files.
type Format interface {
	Name() string
	// Ext is the file name extension of the files, including the leading
	// dot.
	Ext() string
	NewEncoder(w io.Writer, t *Table) (Encoder, error)
}

// Encoder writes the rows of a single file. Close flushes any buffered rows
// and the file footer, but does not close the underlying writer.
type Encoder interface {
	Encode(row Row) error
	Close() error
}

// Deduper remembers which row keys it has seen. It is used to make dimension
// tables distinct.
type Deduper interface {
	// Seen reports whether key was seen before, and remembers it.
	Seen(key []byte) (bool, error)
	Close() error
}

// DeduperFactory returns a new, empty Deduper for the named table.
type DeduperFactory func(table string) (Deduper, error)

// Notifier is told about every table a run has finished writing.
type Notifier interface {
	Notify(ctx context.Context, runID string, stats TableStats) error
	Close() error
}

// SongplayIndexer receives every songplay row in addition to it being written
// to the songplays table.
type SongplayIndexer interface {
	IndexSongplay(p *Songplay) error
	Close() error
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, runID string, stats TableStats) error { return nil }
func (nopNotifier) Close() error                                                     { return nil }
