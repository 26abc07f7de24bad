package json

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// maxLineSize bounds a single json object.
const maxLineSize = 16 << 20

// Source is a datalake.Source for reading newline delimited json objects.
// Blank lines are ignored. A line which is not a json object yields a
// *datalake.RecordError and the Source moves on to the next line.
type Source struct {
	scan      *bufio.Scanner
	name      string
	line      int
	subjectAt string
}

// SrcOption is a functional option for the json Source.
type SrcOption func(s *Source)

// OptSrcSubjectAt tells the source to add a new key to each record whose value
// will be <name>#<line number>.
func OptSrcSubjectAt(key string) SrcOption {
	return func(s *Source) {
		s.subjectAt = key
	}
}

// OptSrcName sets the name used in record origins and errors.
func OptSrcName(name string) SrcOption {
	return func(s *Source) {
		s.name = name
	}
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader, opts ...SrcOption) *Source {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s := &Source{
		scan: scan,
		name: "-",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements datalake.Source. It returns the next json object that can
// be decoded from the reader. It is guaranteed to return a
// map[string]interface{} if there is no error. Numbers are returned as
// json.Number.
func (s *Source) Record() (rec interface{}, err error) {
	for s.scan.Scan() {
		s.line++
		line := bytes.TrimSpace(s.scan.Bytes())
		if len(line) == 0 {
			continue
		}
		origin := fmt.Sprintf("%s#%d", s.name, s.line)
		res, err := decodeObject(line)
		if err != nil {
			return nil, &datalake.RecordError{Origin: origin, Err: err}
		}
		if s.subjectAt != "" {
			res[s.subjectAt] = origin
		}
		return res, nil
	}
	if err := s.scan.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning %s after line %d", s.name, s.line)
	}
	return nil, io.EOF
}

func decodeObject(line []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var res map[string]interface{}
	if err := dec.Decode(&res); err != nil {
		return nil, errors.Wrap(err, "decoding json")
	}
	if res == nil {
		return nil, errors.New("not a json object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after json object")
	}
	return res, nil
}

// Decoder returns a datalake.DecodeFunc which reads each object with a
// Source named after the object.
func Decoder(opts ...SrcOption) datalake.DecodeFunc {
	return func(r datalake.NamedReadCloser) datalake.Source {
		return NewSource(r, append([]SrcOption{OptSrcName(r.Name())}, opts...)...)
	}
}

type rawSourceSource struct {
	rs   datalake.RawSource
	opts []SrcOption

	s *Source
	r datalake.NamedReadCloser
}

// NewSourceFromRawSource gets a datalake.Source which reads the objects of rs
// one after the other, closing each when it is exhausted.
func NewSourceFromRawSource(rs datalake.RawSource, opts ...SrcOption) datalake.Source {
	return &rawSourceSource{rs: rs, opts: opts}
}

func (r *rawSourceSource) Record() (rec interface{}, err error) {
	for {
		if r.s == nil {
			reader, err := r.rs.NextReader()
			if err == io.EOF {
				return nil, err
			} else if err != nil {
				return nil, errors.Wrap(err, "getting next reader")
			}
			r.r = reader
			r.s = NewSource(reader, append([]SrcOption{OptSrcName(reader.Name())}, r.opts...)...)
		}
		rec, err = r.s.Record()
		if err != io.EOF {
			return rec, err
		}
		name := r.r.Name()
		cerr := r.r.Close()
		r.s, r.r = nil, nil
		if cerr != nil {
			return nil, errors.Wrapf(cerr, "closing %s", name)
		}
	}
}
