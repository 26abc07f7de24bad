package json_test

import (
	"bytes"
	stdjson "encoding/json"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/json"
)

func TestSource(t *testing.T) {
	in := `{"a": 1, "b": "x"}

{"a": 2.5, "b": null}
not json
[1, 2]
{"a": 3} {"a": 4}
{"a": 5}
`
	src := json.NewSource(strings.NewReader(in), json.OptSrcName("f.json"), json.OptSrcSubjectAt("#"))

	type result struct {
		origin string
		a      string
		bad    bool
	}
	var got []result
	for {
		rec, err := src.Record()
		if err == io.EOF {
			break
		}
		if rerr, ok := err.(*datalake.RecordError); ok {
			got = append(got, result{origin: rerr.Origin, bad: true})
			continue
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m := rec.(map[string]interface{})
		got = append(got, result{origin: m["#"].(string), a: m["a"].(stdjson.Number).String()})
	}
	exp := []result{
		{origin: "f.json#1", a: "1"},
		{origin: "f.json#3", a: "2.5"},
		{origin: "f.json#4", bad: true},
		{origin: "f.json#5", bad: true},
		{origin: "f.json#6", bad: true},
		{origin: "f.json#7", a: "5"},
	}
	if len(got) != len(exp) {
		t.Fatalf("got %d results, expected %d: %v", len(got), len(exp), got)
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("result %d: got %+v, expected %+v", i, got[i], exp[i])
		}
	}
}

type namedReader struct {
	io.ReadCloser
	name   string
	closed *int
}

func (n namedReader) Name() string                 { return n.name }
func (n namedReader) Meta() map[string]interface{} { return nil }
func (n namedReader) Close() error                 { *n.closed++; return nil }

type sliceRawSource struct {
	readers []datalake.NamedReadCloser
}

func (s *sliceRawSource) NextReader() (datalake.NamedReadCloser, error) {
	if len(s.readers) == 0 {
		return nil, io.EOF
	}
	r := s.readers[0]
	s.readers = s.readers[1:]
	return r, nil
}

func TestSourceFromRawSource(t *testing.T) {
	var closed int
	rs := &sliceRawSource{readers: []datalake.NamedReadCloser{
		namedReader{ReadCloser: ioutil.NopCloser(bytes.NewBufferString(`{"n": "a"}` + "\n" + `{"n": "b"}`)), name: "one", closed: &closed},
		namedReader{ReadCloser: ioutil.NopCloser(bytes.NewBufferString("")), name: "empty", closed: &closed},
		namedReader{ReadCloser: ioutil.NopCloser(bytes.NewBufferString(`{"n": "c"}`)), name: "two", closed: &closed},
	}}
	src := json.NewSourceFromRawSource(rs, json.OptSrcSubjectAt("origin"))
	var origins, ns []string
	for {
		rec, err := src.Record()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("getting record: %v", err)
		}
		m := rec.(map[string]interface{})
		origins = append(origins, m["origin"].(string))
		ns = append(ns, m["n"].(string))
	}
	if strings.Join(ns, ",") != "a,b,c" {
		t.Errorf("unexpected records: %v", ns)
	}
	if strings.Join(origins, ",") != "one#1,one#2,two#1" {
		t.Errorf("unexpected origins: %v", origins)
	}
	if closed != 3 {
		t.Errorf("expected 3 readers closed, got %d", closed)
	}
}
