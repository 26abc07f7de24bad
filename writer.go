package datalake

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// SuccessMarker is the name of the empty object written into a table's
// directory once every part file of the table is complete.
const SuccessMarker = "_SUCCESS"

// TableStats summarizes a table written by a TableWriter.
type TableStats struct {
	Table      string `json:"table"`
	Location   string `json:"location"`
	Rows       int64  `json:"rows"`
	Duplicates int64  `json:"duplicates"`
	Files      int    `json:"files"`
	Bytes      int64  `json:"bytes"`
	Partitions int    `json:"partitions"`
}

// WriterOption is a functional option type for TableWriter.
type WriterOption func(w *TableWriter)

// OptWriterDeduper makes the TableWriter drop rows whose key d has already
// seen. The TableWriter closes d when it is closed.
func OptWriterDeduper(d Deduper) WriterOption {
	return func(w *TableWriter) {
		w.dedupe = d
	}
}

// OptWriterMaxRowsPerFile starts a new part file once a file holds n rows. 0
// means no limit.
func OptWriterMaxRowsPerFile(n int) WriterOption {
	return func(w *TableWriter) {
		w.maxRows = n
	}
}

// OptWriterRunID sets the run id embedded in part file names.
func OptWriterRunID(id string) WriterOption {
	return func(w *TableWriter) {
		w.runID = id
	}
}

// OptWriterLogger sets the logger for problems that can't be returned, such
// as failures while aborting.
func OptWriterLogger(l zerolog.Logger) WriterOption {
	return func(w *TableWriter) {
		w.log = l
	}
}

// TableWriter writes the rows of one table as partitioned part files. It
// keeps one open file per partition directory. It is not threadsafe.
type TableWriter struct {
	ctx    context.Context
	table  *Table
	store  Store
	format Format

	dedupe  Deduper
	maxRows int
	runID   string
	log     zerolog.Logger

	parts      map[string]*partFile
	partitions map[string]struct{}
	nextFile   int
	stats      TableStats
}

type partFile struct {
	key  string
	wc   io.WriteCloser
	cw   *countingWriter
	enc  Encoder
	rows int
}

// NewTableWriter returns a TableWriter for table which creates files in store.
func NewTableWriter(ctx context.Context, table *Table, store Store, format Format, opts ...WriterOption) *TableWriter {
	w := &TableWriter{
		ctx:        ctx,
		table:      table,
		store:      store,
		format:     format,
		runID:      "0",
		log:        zerolog.Nop(),
		parts:      make(map[string]*partFile),
		partitions: make(map[string]struct{}),
		stats: TableStats{
			Table:    table.Name,
			Location: store.String() + "/" + table.Dir,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write adds row to the table.
func (w *TableWriter) Write(row Row) error {
	if w.dedupe != nil {
		seen, err := w.dedupe.Seen(row.Key())
		if err != nil {
			return errors.Wrapf(err, "checking %s row for duplicates", w.table.Name)
		}
		if seen {
			w.stats.Duplicates++
			return nil
		}
	}
	dir := PartitionPath(w.table.PartitionBy, row.Record())
	pf := w.parts[dir]
	if pf != nil && w.maxRows > 0 && pf.rows >= w.maxRows {
		delete(w.parts, dir)
		if err := w.closePart(pf); err != nil {
			return err
		}
		pf = nil
	}
	if pf == nil {
		var err error
		pf, err = w.openPart(dir)
		if err != nil {
			return err
		}
		w.parts[dir] = pf
	}
	if err := pf.enc.Encode(row); err != nil {
		return errors.Wrapf(err, "encoding row into %s", pf.key)
	}
	pf.rows++
	w.stats.Rows++
	return nil
}

func (w *TableWriter) openPart(dir string) (*partFile, error) {
	name := fmt.Sprintf("part-%05d-%s%s", w.nextFile, w.runID, w.format.Ext())
	key := path.Join(w.table.Dir, dir, name)
	wc, err := w.store.Create(w.ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", key)
	}
	cw := &countingWriter{w: wc}
	enc, err := w.format.NewEncoder(cw, w.table)
	if err != nil {
		wc.Close()
		return nil, errors.Wrapf(err, "getting %s encoder for %s", w.format.Name(), key)
	}
	w.nextFile++
	w.stats.Files++
	w.partitions[dir] = struct{}{}
	return &partFile{key: key, wc: wc, cw: cw, enc: enc}, nil
}

func (w *TableWriter) closePart(pf *partFile) error {
	err := pf.enc.Close()
	cerr := pf.wc.Close()
	w.stats.Bytes += pf.cw.n
	if err != nil {
		return errors.Wrapf(err, "finishing %s", pf.key)
	}
	return errors.Wrapf(cerr, "closing %s", pf.key)
}

// Close finishes every open part file, writes the success marker and returns
// the table's stats.
func (w *TableWriter) Close() (TableStats, error) {
	dirs := make([]string, 0, len(w.parts))
	for dir := range w.parts {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	var firstErr error
	for _, dir := range dirs {
		if err := w.closePart(w.parts[dir]); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(w.parts, dir)
	}
	if w.dedupe != nil {
		if err := w.dedupe.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "closing deduper")
		}
	}
	w.stats.Partitions = len(w.partitions)
	if firstErr != nil {
		return w.stats, firstErr
	}
	key := path.Join(w.table.Dir, SuccessMarker)
	wc, err := w.store.Create(w.ctx, key)
	if err != nil {
		return w.stats, errors.Wrapf(err, "creating %s", key)
	}
	return w.stats, errors.Wrapf(wc.Close(), "closing %s", key)
}

// Abort closes every open part file without writing the success marker.
func (w *TableWriter) Abort() {
	for dir, pf := range w.parts {
		if err := w.closePart(pf); err != nil {
			w.log.Warn().Err(err).Str("table", w.table.Name).Str("file", pf.key).Msg("closing part file while aborting")
		}
		delete(w.parts, dir)
	}
	if w.dedupe != nil {
		if err := w.dedupe.Close(); err != nil {
			w.log.Warn().Err(err).Str("table", w.table.Name).Msg("closing deduper while aborting")
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
