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

package leveldb

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var _ datalake.Deduper = &Deduper{}

// Deduper is a datalake.Deduper which remembers the keys it has seen in a
// leveldb, so that distinct tables larger than memory can be written. The
// store only lives as long as the Deduper.
type Deduper struct {
	lock    sync.Mutex
	dirname string
	db      *leveldb.DB
	n       int
}

// NewDeduper creates a Deduper with its store in dirname. Anything left in
// dirname by an earlier run is removed.
func NewDeduper(dirname string) (*Deduper, error) {
	if err := os.RemoveAll(dirname); err != nil {
		return nil, errors.Wrap(err, "removing stale store")
	}
	if err := os.MkdirAll(filepath.Dir(dirname), 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &Deduper{dirname: dirname, db: db}, nil
}

// NewDeduperFactory gets a datalake.DeduperFactory which keeps the store of
// each table in its own directory under dirname.
func NewDeduperFactory(dirname string) datalake.DeduperFactory {
	return func(table string) (datalake.Deduper, error) {
		return NewDeduper(filepath.Join(dirname, table))
	}
}

// Seen records key and reports whether it had been recorded before.
func (d *Deduper) Seen(key []byte) (bool, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	ok, err := d.db.Has(key, &opt.ReadOptions{})
	if err != nil {
		return false, errors.Wrap(err, "reading key")
	} else if ok {
		return true, nil
	}
	if err := d.db.Put(key, nil, &opt.WriteOptions{}); err != nil {
		return false, errors.Wrap(err, "putting key")
	}
	d.n++
	return false, nil
}

// Len returns the number of distinct keys seen.
func (d *Deduper) Len() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.n
}

// Close closes the leveldb and removes its files.
func (d *Deduper) Close() error {
	err := d.db.Close()
	if err != nil && err != leveldb.ErrClosed {
		return errors.Wrap(err, "closing leveldb")
	}
	return errors.Wrap(os.RemoveAll(d.dirname), "removing store")
}
