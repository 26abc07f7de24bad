// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// fakeS3 keeps the objects of a single bucket in memory and pages listings
// two objects at a time.
type fakeS3 struct {
	s3iface.S3API

	mu            sync.Mutex
	objects       map[string][]byte
	deleteBatches []int
}

func newFakeS3(keys ...string) *fakeS3 {
	f := &fakeS3{objects: make(map[string][]byte)}
	for _, k := range keys {
		f.objects[k] = []byte("contents of " + k)
	}
	return f
}

func (f *fakeS3) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sizes := make(map[string]int64, len(keys))
	for _, k := range keys {
		sizes[k] = int64(len(f.objects[k]))
	}
	f.mu.Unlock()
	sort.Strings(keys)

	for i := 0; i < len(keys) || i == 0; i += 2 {
		page := &s3.ListObjectsV2Output{}
		for j := i; j < i+2 && j < len(keys); j++ {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(keys[j]), Size: aws.Int64(sizes[keys[j]])})
		}
		if !fn(page, i+2 >= len(keys)) {
			break
		}
	}
	return nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObjectsWithContext(ctx aws.Context, in *s3.DeleteObjectsInput, opts ...request.Option) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(in.Delete.Objects) > deleteBatchSize {
		return nil, errors.New("too many keys")
	}
	f.deleteBatches = append(f.deleteBatches, len(in.Delete.Objects))
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.StringValue(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

type fakeUploader struct {
	s3manageriface.UploaderAPI
	s3   *fakeS3
	fail error
}

func (u *fakeUploader) UploadWithContext(ctx aws.Context, in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if u.fail != nil {
		return nil, u.fail
	}
	data, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	u.s3.mu.Lock()
	u.s3.objects[aws.StringValue(in.Key)] = data
	u.s3.mu.Unlock()
	return &s3manager.UploadOutput{}, nil
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url, bucket, prefix string
		ok                  bool
	}{
		{url: "s3://bucket", bucket: "bucket", ok: true},
		{url: "s3a://udacity-dend/", bucket: "udacity-dend", ok: true},
		{url: "s3n://out/lake/v1/", bucket: "out", prefix: "lake/v1", ok: true},
		{url: "s3://", ok: false},
		{url: "/tmp/data", ok: false},
		{url: "gs://bucket/x", ok: false},
	}
	for _, tst := range tests {
		bucket, prefix, ok := ParseURL(tst.url)
		if bucket != tst.bucket || prefix != tst.prefix || ok != tst.ok {
			t.Errorf("%s: got (%q, %q, %v)", tst.url, bucket, prefix, ok)
		}
	}
}

func TestStoreOpen(t *testing.T) {
	fake := newFakeS3(
		"data/song_data/A/A/A/1.json",
		"data/song_data/A/A/B/2.json",
		"data/song_data/A/B/A/3.json",
		"data/song_data/A/B/A/notes.txt",
		"data/song_data/B/A/A/4.json",
		"data/log_data/2018/11/a.json",
		"other/song_data/A/A/A/5.json",
	)
	s := NewStoreWithClient(fake, &fakeUploader{s3: fake}, "bucket", "/data/")
	if s.String() != "s3://bucket/data" {
		t.Fatalf("unexpected name %s", s)
	}

	rs, err := s.Open(context.Background(), "song_data/A/*/*/*.json")
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	var names []string
	for {
		r, err := rs.NextReader()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("getting reader: %v", err)
		}
		buf, err := ioutil.ReadAll(r)
		if err != nil {
			t.Fatalf("reading: %v", err)
		}
		if string(buf) != "contents of data/"+r.Name() {
			t.Errorf("unexpected contents %q for %s", buf, r.Name())
		}
		if r.Meta()["size"] != int64(len(buf)) {
			t.Errorf("unexpected size %v for %s", r.Meta()["size"], r.Name())
		}
		names = append(names, r.Name())
		r.Close()
	}
	exp := "song_data/A/A/A/1.json,song_data/A/A/B/2.json,song_data/A/B/A/3.json"
	if strings.Join(names, ",") != exp {
		t.Fatalf("unexpected objects: %v", names)
	}

	_, err = s.Open(context.Background(), "song_data/C/*.json")
	if errors.Cause(err) != datalake.ErrNoInput {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
}

func TestStoreCreate(t *testing.T) {
	fake := newFakeS3()
	s := NewStoreWithClient(fake, &fakeUploader{s3: fake}, "bucket", "")
	w, err := s.Create(context.Background(), "songs/year=1969/part-00000.parquet")
	if err != nil {
		t.Fatalf("creating: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := io.WriteString(w, "chunk"); err != nil {
			t.Fatalf("writing: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing twice: %v", err)
	}
	if got := string(fake.objects["songs/year=1969/part-00000.parquet"]); got != "chunkchunkchunk" {
		t.Fatalf("unexpected object %q", got)
	}
}

func TestStoreCreateUploadError(t *testing.T) {
	fake := newFakeS3()
	s := NewStoreWithClient(fake, &fakeUploader{s3: fake, fail: errors.New("denied")}, "bucket", "out")
	w, err := s.Create(context.Background(), "users/part-00000.parquet")
	if err != nil {
		t.Fatalf("creating: %v", err)
	}
	if _, err := io.WriteString(w, "data"); err == nil {
		t.Fatal("expected write to fail after upload failed")
	}
	err = w.Close()
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("expected upload error on close, got %v", err)
	}
	if !strings.Contains(err.Error(), "out/users/part-00000.parquet") {
		t.Fatalf("expected key in error, got %v", err)
	}
}

func TestStoreRemoveAll(t *testing.T) {
	fake := newFakeS3("out/songplays2/x", "out/songplay")
	for i := 0; i < 2500; i++ {
		fake.objects[fmt.Sprintf("out/songplays/year=2018/month=11/part-%05d", i)] = nil
	}
	s := NewStoreWithClient(fake, &fakeUploader{s3: fake}, "bucket", "out")
	if err := s.RemoveAll(context.Background(), "songplays"); err != nil {
		t.Fatalf("removing: %v", err)
	}
	if fmt.Sprint(fake.deleteBatches) != "[1000 1000 500]" {
		t.Fatalf("unexpected delete batches %v", fake.deleteBatches)
	}
	if len(fake.objects) != 2 {
		t.Fatalf("expected siblings to survive, have %d objects", len(fake.objects))
	}
	if err := s.RemoveAll(context.Background(), "/"); err == nil {
		t.Fatal("removing the root should fail")
	}
}
