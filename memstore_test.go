package datalake_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// memStore is a datalake.Store holding its objects in memory.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	closes  int
	failKey string
}

func newMemStore(objects map[string]string) *memStore {
	m := &memStore{objects: make(map[string][]byte)}
	for k, v := range objects {
		m.objects[k] = []byte(v)
	}
	return m
}

func (m *memStore) Open(ctx context.Context, pattern string) (datalake.RawSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, errors.Wrapf(datalake.ErrNoInput, "mem %s", pattern)
	}
	sort.Strings(keys)
	rs := &memRawSource{store: m}
	for _, k := range keys {
		rs.objs = append(rs.objs, &memObject{Reader: bytes.NewReader(m.objects[k]), name: k, store: m})
	}
	return rs, nil
}

func (m *memStore) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	if m.failKey != "" && strings.HasSuffix(key, m.failKey) {
		return nil, errors.New("create refused")
	}
	return &memWriter{key: key, store: m}, nil
}

func (m *memStore) RemoveAll(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix+"/") {
			delete(m.objects, k)
		}
	}
	return nil
}

func (m *memStore) String() string { return "mem:/" }

// keys returns the sorted keys under prefix.
func (m *memStore) keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix+"/") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type memRawSource struct {
	mu    sync.Mutex
	store *memStore
	objs  []*memObject
}

func (rs *memRawSource) NextReader() (datalake.NamedReadCloser, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.objs) == 0 {
		return nil, io.EOF
	}
	o := rs.objs[0]
	rs.objs = rs.objs[1:]
	return o, nil
}

type memObject struct {
	*bytes.Reader
	name  string
	store *memStore
}

func (o *memObject) Name() string                 { return o.name }
func (o *memObject) Meta() map[string]interface{} { return nil }
func (o *memObject) Close() error {
	o.store.mu.Lock()
	o.store.closes++
	o.store.mu.Unlock()
	return nil
}

type memWriter struct {
	bytes.Buffer
	key   string
	store *memStore
}

func (w *memWriter) Close() error {
	w.store.mu.Lock()
	w.store.objects[w.key] = w.Bytes()
	w.store.mu.Unlock()
	return nil
}

// linesFormat writes every row as a line of JSON.
type linesFormat struct{}

func (linesFormat) Name() string { return "lines" }
func (linesFormat) Ext() string  { return ".jsonl" }
func (linesFormat) NewEncoder(w io.Writer, t *datalake.Table) (datalake.Encoder, error) {
	return &linesEncoder{enc: json.NewEncoder(w)}, nil
}

type linesEncoder struct {
	enc *json.Encoder
}

func (e *linesEncoder) Encode(row datalake.Row) error { return e.enc.Encode(row.Record()) }
func (e *linesEncoder) Close() error                  { return nil }

// lines returns the decoded rows of an object written with linesFormat.
func (m *memStore) lines(key string) []map[string]interface{} {
	m.mu.Lock()
	data := m.objects[key]
	m.mu.Unlock()
	var rows []map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var row map[string]interface{}
		if err := dec.Decode(&row); err != nil {
			return rows
		}
		rows = append(rows, row)
	}
}
