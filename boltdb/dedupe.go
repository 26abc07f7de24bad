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

package boltdb

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

var _ datalake.Deduper = &Deduper{}

var seenVal = []byte{1}

// Deduper is a datalake.Deduper which remembers the keys it has seen in a
// bolt bucket. The file only lives as long as the Deduper.
type Deduper struct {
	Db       *bolt.DB
	filename string
	bucket   []byte
	n        int
}

// NewDeduper creates a Deduper keeping keys in the named bucket of a new
// bolt file. An existing file is removed first.
func NewDeduper(filename, bucket string) (d *Deduper, err error) {
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "removing stale db file")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	d = &Deduper{
		filename: filename,
		bucket:   []byte(bucket),
	}
	d.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second, NoGrowSync: true})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	d.Db.NoSync = true
	err = d.Db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(d.bucket)
		return errors.Wrap(err, "creating bucket")
	})
	if err != nil {
		d.Db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return d, nil
}

// NewDeduperFactory gets a datalake.DeduperFactory which keeps each table in
// <dirname>/<table>.bolt.
func NewDeduperFactory(dirname string) datalake.DeduperFactory {
	return func(table string) (datalake.Deduper, error) {
		return NewDeduper(filepath.Join(dirname, table+".bolt"), table)
	}
}

// Seen records key and reports whether it had been recorded before.
func (d *Deduper) Seen(key []byte) (seen bool, err error) {
	err = d.Db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(d.bucket)
		if b.Get(key) != nil {
			seen = true
			return nil
		}
		return b.Put(key, seenVal)
	})
	if err != nil {
		return false, errors.Wrap(err, "updating bucket")
	}
	if !seen {
		d.n++
	}
	return seen, nil
}

// Len returns the number of distinct keys seen.
func (d *Deduper) Len() int { return d.n }

// Close closes the db and removes its file.
func (d *Deduper) Close() error {
	if err := d.Db.Close(); err != nil {
		return errors.Wrap(err, "closing db")
	}
	return errors.Wrap(os.Remove(d.filename), "removing db file")
}
