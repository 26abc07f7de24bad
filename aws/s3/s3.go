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
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// deleteBatchSize is the most keys a single DeleteObjects call accepts.
const deleteBatchSize = 1000

// Config holds what is needed to talk to S3. Empty credentials mean the
// default credential chain is used.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewSession gets an AWS session for c.
func NewSession(c Config) (*session.Session, error) {
	cfg := aws.NewConfig()
	if c.Region != "" {
		cfg = cfg.WithRegion(c.Region)
	}
	if c.Endpoint != "" {
		cfg = cfg.WithEndpoint(c.Endpoint).WithS3ForcePathStyle(true)
	}
	if c.AccessKeyID != "" || c.SecretAccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(c.AccessKeyID, c.SecretAccessKey, ""))
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	return sess, nil
}

// ParseURL splits an s3://, s3a:// or s3n:// URL into bucket and key prefix.
// ok is false if u is not such a URL.
func ParseURL(u string) (bucket, prefix string, ok bool) {
	for _, scheme := range []string{"s3://", "s3a://", "s3n://"} {
		if strings.HasPrefix(u, scheme) {
			rest := strings.TrimPrefix(u, scheme)
			bucket = rest
			if i := strings.Index(rest, "/"); i >= 0 {
				bucket, prefix = rest[:i], strings.Trim(rest[i+1:], "/")
			}
			return bucket, prefix, bucket != ""
		}
	}
	return "", "", false
}

// Store is a datalake.Store over the objects of a bucket below a key prefix.
type Store struct {
	bucket string
	prefix string

	s3 s3iface.S3API
	up s3manageriface.UploaderAPI
}

// NewStore gets a Store using a client and uploader made from sess.
func NewStore(sess *session.Session, bucket, prefix string) *Store {
	client := s3.New(sess)
	return NewStoreWithClient(client, s3manager.NewUploaderWithClient(client), bucket, prefix)
}

// NewStoreWithClient gets a Store using the given client and uploader.
func NewStoreWithClient(client s3iface.S3API, up s3manageriface.UploaderAPI, bucket, prefix string) *Store {
	return &Store{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		s3:     client,
		up:     up,
	}
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *Store) String() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

// Open implements datalake.Store. pattern is matched against object keys
// relative to the store's prefix with path.Match.
func (s *Store) Open(ctx context.Context, pattern string) (datalake.RawSource, error) {
	full := s.key(pattern)
	var keys []string
	var sizes []int64
	err := s.list(ctx, literalPrefix(full), func(obj *s3.Object) error {
		key := aws.StringValue(obj.Key)
		ok, err := path.Match(full, key)
		if err != nil {
			return errors.Wrapf(err, "matching %s", pattern)
		}
		if ok {
			keys = append(keys, key)
			sizes = append(sizes, aws.Int64Value(obj.Size))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.Wrapf(datalake.ErrNoInput, "%s in %s", pattern, s)
	}
	rs := &RawSource{
		ctx:    ctx,
		store:  s,
		keys:   keys,
		sizes:  sizes,
		objIdx: new(uint64),
	}
	sort.Sort(rs)
	return rs, nil
}

func (s *Store) list(ctx context.Context, prefix string, fn func(obj *s3.Object) error) error {
	var ferr error
	err := s.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			if ferr = fn(obj); ferr != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return errors.Wrapf(err, "listing s3://%s/%s", s.bucket, prefix)
	}
	return ferr
}

// literalPrefix returns the part of pattern before its first meta character.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// Create implements datalake.Store. Data written to the returned writer is
// streamed to S3 and the object exists once Close returns nil.
func (s *Store) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	key := s.key(name)
	pr, pw := io.Pipe()
	w := &objWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.up.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		pr.CloseWithError(err)
		w.done <- errors.Wrapf(err, "uploading %s", key)
	}()
	return w, nil
}

type objWriter struct {
	pw   *io.PipeWriter
	done chan error

	once sync.Once
	err  error
}

func (w *objWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *objWriter) Close() error {
	w.once.Do(func() {
		w.pw.Close()
		w.err = <-w.done
	})
	return w.err
}

// RemoveAll implements datalake.Store. It deletes every object below
// prefix/ and refuses to remove the whole store.
func (s *Store) RemoveAll(ctx context.Context, prefix string) error {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return errors.Errorf("refusing to remove store root %s", s)
	}
	dir := s.key(prefix) + "/"
	batch := make([]*s3.ObjectIdentifier, 0, deleteBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		out, err := s.s3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Wrapf(err, "deleting objects below %s", dir)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return errors.Errorf("deleting %s: %s: %s (%d errors)",
				aws.StringValue(e.Key), aws.StringValue(e.Code), aws.StringValue(e.Message), len(out.Errors))
		}
		batch = batch[:0]
		return nil
	}
	err := s.list(ctx, dir, func(obj *s3.Object) error {
		batch = append(batch, &s3.ObjectIdentifier{Key: obj.Key})
		if len(batch) == deleteBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// RawSource is a datalake.RawSource over a listed set of objects.
type RawSource struct {
	ctx   context.Context
	store *Store

	keys   []string
	sizes  []int64
	objIdx *uint64
}

func (rs *RawSource) Len() int           { return len(rs.keys) }
func (rs *RawSource) Less(i, j int) bool { return rs.keys[i] < rs.keys[j] }
func (rs *RawSource) Swap(i, j int) {
	rs.keys[i], rs.keys[j] = rs.keys[j], rs.keys[i]
	rs.sizes[i], rs.sizes[j] = rs.sizes[j], rs.sizes[i]
}

type objReader struct {
	name string
	size int64
	body io.ReadCloser
}

func (o *objReader) Read(buf []byte) (n int, err error) {
	return o.body.Read(buf)
}

func (o *objReader) Close() error {
	return o.body.Close()
}

// Name returns the object's key relative to the store's prefix.
func (o *objReader) Name() string {
	return o.name
}

func (o *objReader) Meta() map[string]interface{} {
	return map[string]interface{}{"size": o.size}
}

// NextReader implements datalake.RawSource. It is safe for concurrent use.
func (rs *RawSource) NextReader() (datalake.NamedReadCloser, error) {
	idx := atomic.AddUint64(rs.objIdx, 1) - 1
	if int(idx) >= len(rs.keys) {
		return nil, io.EOF
	}
	key := rs.keys[idx]

	result, err := rs.store.s3.GetObjectWithContext(rs.ctx, &s3.GetObjectInput{
		Bucket: aws.String(rs.store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", key)
	}
	name := key
	if rs.store.prefix != "" {
		name = strings.TrimPrefix(key, rs.store.prefix+"/")
	}
	return &objReader{name: name, size: rs.sizes[idx], body: result.Body}, nil
}
