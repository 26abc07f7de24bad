// Package parquet writes tables as Apache Parquet files. The schema of a
// table is reflected from its row model, so partition columns, which are
// tagged `parquet:"-"`, only appear in the directory layout.
package parquet

import (
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// Compressions lists the supported compression names.
var Compressions = []string{"snappy", "gzip", "zstd", "none"}

// Format is a datalake.Format producing Parquet files.
type Format struct {
	codec compress.Codec
	ext   string
}

// NewFormat gets a Format using the named compression. The empty name means
// snappy.
func NewFormat(compression string) (*Format, error) {
	switch strings.ToLower(compression) {
	case "", "snappy":
		return &Format{codec: &parquet.Snappy, ext: ".snappy.parquet"}, nil
	case "gzip":
		return &Format{codec: &parquet.Gzip, ext: ".gz.parquet"}, nil
	case "zstd":
		return &Format{codec: &parquet.Zstd, ext: ".zstd.parquet"}, nil
	case "none", "uncompressed":
		return &Format{codec: &parquet.Uncompressed, ext: ".parquet"}, nil
	}
	return nil, errors.Errorf("unknown parquet compression '%s', expected one of %v", compression, Compressions)
}

func (f *Format) Name() string { return "parquet" }
func (f *Format) Ext() string  { return f.ext }

// NewEncoder implements datalake.Format.
func (f *Format) NewEncoder(w io.Writer, t *datalake.Table) (datalake.Encoder, error) {
	if t.Model == nil {
		return nil, errors.Errorf("table %s has no row model", t.Name)
	}
	schema := parquet.SchemaOf(t.Model)
	return &encoder{
		w: parquet.NewWriter(w, schema, parquet.Compression(f.codec)),
	}, nil
}

type encoder struct {
	w *parquet.Writer
}

func (e *encoder) Encode(row datalake.Row) error {
	return errors.Wrap(e.w.Write(row), "writing parquet row")
}

// Close writes the footer. It does not close the underlying writer.
func (e *encoder) Close() error {
	return errors.Wrap(e.w.Close(), "closing parquet writer")
}
