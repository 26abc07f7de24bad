// Package avro writes tables as Avro object container files.
package avro

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/linkedin/goavro/v2"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// Namespace is the namespace of generated record schemas.
const Namespace = "sparkify"

// blockSize is the number of rows buffered before a block is appended.
const blockSize = 1000

// Format is a datalake.Format producing Avro object container files.
type Format struct {
	compression string
}

// NewFormat gets a Format using the named block compression: snappy (the
// default), deflate or none.
func NewFormat(compression string) (*Format, error) {
	switch strings.ToLower(compression) {
	case "", "snappy":
		return &Format{compression: goavro.CompressionSnappyLabel}, nil
	case "deflate", "gzip":
		return &Format{compression: goavro.CompressionDeflateLabel}, nil
	case "none", "null", "uncompressed":
		return &Format{compression: goavro.CompressionNullLabel}, nil
	}
	return nil, errors.Errorf("unknown avro compression '%s', expected snappy, deflate or none", compression)
}

func (f *Format) Name() string { return "avro" }
func (f *Format) Ext() string  { return ".avro" }

// NewEncoder implements datalake.Format.
func (f *Format) NewEncoder(w io.Writer, t *datalake.Table) (datalake.Encoder, error) {
	schema, err := Schema(t)
	if err != nil {
		return nil, errors.Wrap(err, "generating schema")
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling schema for %s", t.Name)
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: f.compression,
	})
	if err != nil {
		return nil, errors.Wrap(err, "getting OCF writer")
	}
	return &encoder{
		ocf:     ocf,
		columns: t.DataColumns(),
		buf:     make([]interface{}, 0, blockSize),
	}, nil
}

func avroType(c datalake.Column) (interface{}, string, error) {
	switch c.Type {
	case datalake.String:
		return "string", "string", nil
	case datalake.Int32:
		return "int", "int", nil
	case datalake.Int64:
		return "long", "long", nil
	case datalake.Double:
		return "double", "double", nil
	case datalake.Timestamp:
		return map[string]string{"type": "long", "logicalType": "timestamp-millis"}, "long.timestamp-millis", nil
	}
	return nil, "", errors.Errorf("column %s: no avro type for %v", c.Name, c.Type)
}

// Schema returns the Avro schema of the data columns of t. Nullable columns
// become unions with null.
func Schema(t *datalake.Table) (string, error) {
	fields := make([]map[string]interface{}, 0, len(t.Columns))
	for _, c := range t.DataColumns() {
		typ, _, err := avroType(c)
		if err != nil {
			return "", err
		}
		field := map[string]interface{}{"name": c.Name, "type": typ}
		if c.Nullable {
			field["type"] = []interface{}{"null", typ}
			field["default"] = nil
		}
		fields = append(fields, field)
	}
	schema, err := json.Marshal(map[string]interface{}{
		"type":      "record",
		"name":      t.Name,
		"namespace": Namespace,
		"fields":    fields,
	})
	return string(schema), errors.Wrap(err, "marshaling schema")
}

type encoder struct {
	ocf     *goavro.OCFWriter
	columns []datalake.Column
	buf     []interface{}
}

func (e *encoder) Encode(row datalake.Row) error {
	rec := row.Record()
	datum := make(map[string]interface{}, len(e.columns))
	for _, c := range e.columns {
		v := rec[c.Name]
		if c.Nullable && v != nil {
			_, branch, err := avroType(c)
			if err != nil {
				return err
			}
			v = goavro.Union(branch, v)
		}
		datum[c.Name] = v
	}
	e.buf = append(e.buf, datum)
	if len(e.buf) >= blockSize {
		return e.flush()
	}
	return nil
}

func (e *encoder) flush() error {
	if len(e.buf) == 0 {
		return nil
	}
	err := e.ocf.Append(e.buf)
	e.buf = e.buf[:0]
	return errors.Wrap(err, "appending avro block")
}

// Close appends any buffered rows. It does not close the underlying writer.
func (e *encoder) Close() error {
	return e.flush()
}
