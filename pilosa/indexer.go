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

package pilosa

import (
	"io"
	"sync"
	"time"

	gopilosa "github.com/pilosa/go-pilosa"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/geohash"
)

// Fields of the songplay index.
const (
	FieldUser      = "user"
	FieldLevel     = "level"
	FieldArtist    = "artist"
	FieldGeohash   = "geohash"
	FieldWeekday   = "weekday"
	FieldHour      = "hour"
	FieldSessionID = "session_id"
)

var _ datalake.SongplayIndexer = &Indexer{}

// IndexerOption is a functional option type for Indexer.
type IndexerOption func(i *Indexer)

// OptIndexerBatchSize sets the import batch size.
func OptIndexerBatchSize(n int) IndexerOption {
	return func(i *Indexer) {
		i.batchSize = n
	}
}

// OptIndexerGeohashPrecision sets the length of the artist location geohash.
func OptIndexerGeohashPrecision(p int) IndexerOption {
	return func(i *Indexer) {
		i.precision = p
	}
}

// OptIndexerLogger sets the logger.
func OptIndexerLogger(l zerolog.Logger) IndexerOption {
	return func(i *Indexer) {
		i.log = l
	}
}

// Indexer is a datalake.SongplayIndexer which imports songplays into a
// Pilosa index. Each songplay is a column, identified by its songplay_id.
type Indexer struct {
	client    *gopilosa.Client
	index     *gopilosa.Index
	batchSize int
	precision int
	log       zerolog.Logger

	importWG    sync.WaitGroup
	recordChans map[string]chanRecordIterator

	errLock   sync.Mutex
	importErr error
}

// NewSchema returns a schema holding the songplay index and its fields.
func NewSchema(indexName string) (*gopilosa.Schema, *gopilosa.Index) {
	schema := gopilosa.NewSchema()
	index := schema.Index(indexName)
	for _, name := range []string{FieldUser, FieldLevel, FieldArtist, FieldGeohash} {
		index.Field(name, gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, 100000), gopilosa.OptFieldKeys(true))
	}
	index.Field(FieldWeekday, gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, 10))
	index.Field(FieldHour, gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, 100))
	index.Field(FieldSessionID, gopilosa.OptFieldTypeInt(0, 1<<31-1))
	return schema, index
}

// NewIndexer creates the index and its fields on the cluster at hosts and
// starts an importer for each field.
func NewIndexer(hosts []string, indexName string, opts ...IndexerOption) (*Indexer, error) {
	i := &Indexer{
		batchSize:   1000,
		precision:   6,
		log:         zerolog.Nop(),
		recordChans: make(map[string]chanRecordIterator),
	}
	for _, opt := range opts {
		opt(i)
	}
	client, err := gopilosa.NewClient(hosts,
		gopilosa.OptClientSocketTimeout(time.Minute*60),
		gopilosa.OptClientConnectTimeout(time.Second*60))
	if err != nil {
		return nil, errors.Wrap(err, "creating pilosa cluster client")
	}
	i.client = client
	var schema *gopilosa.Schema
	schema, i.index = NewSchema(indexName)
	err = client.SyncSchema(schema)
	if err != nil {
		return nil, errors.Wrap(err, "synchronizing schema")
	}
	for _, field := range i.index.Fields() {
		i.setupField(field)
	}
	return i, nil
}

// setupField starts an importer for the field.
func (i *Indexer) setupField(field *gopilosa.Field) {
	fieldName := field.Name()
	c := newChanRecordIterator()
	i.recordChans[fieldName] = c
	i.importWG.Add(1)
	go func() {
		defer i.importWG.Done()
		err := i.client.ImportField(field, c, gopilosa.OptImportBatchSize(i.batchSize))
		if err != nil {
			i.setErr(errors.Wrapf(err, "importing field %s", fieldName))
			// keep draining so that IndexSongplay does not block
			for range c {
			}
		}
	}()
}

func (i *Indexer) setErr(err error) {
	i.errLock.Lock()
	defer i.errLock.Unlock()
	if i.importErr == nil {
		i.importErr = err
		i.log.Error().Err(err).Msg("pilosa import failed")
	}
}

func (i *Indexer) err() error {
	i.errLock.Lock()
	defer i.errLock.Unlock()
	return i.importErr
}

// IndexSongplay queues the bits of p for import. It returns the first import
// error seen so far, if any.
func (i *Indexer) IndexSongplay(p *datalake.Songplay) error {
	if err := i.err(); err != nil {
		return err
	}
	recs, err := recordsFor(p, i.precision)
	if err != nil {
		return errors.Wrapf(err, "getting records for %s", p.Origin)
	}
	for _, fr := range recs {
		i.recordChans[fr.field] <- fr.rec
	}
	return nil
}

// Close waits for all queued records to be imported.
func (i *Indexer) Close() error {
	for _, c := range i.recordChans {
		close(c)
	}
	i.importWG.Wait()
	return i.err()
}

type fieldRecord struct {
	field string
	rec   gopilosa.Record
}

// recordsFor returns what gets imported for p. Fields with no value for p
// get nothing.
func recordsFor(p *datalake.Songplay, precision int) ([]fieldRecord, error) {
	col := uint64(p.SongplayID)
	recs := make([]fieldRecord, 0, 7)
	keyed := func(field, key string) {
		if key != "" {
			recs = append(recs, fieldRecord{field: field, rec: gopilosa.Column{ColumnID: col, RowKey: key}})
		}
	}
	keyed(FieldUser, p.UserID)
	keyed(FieldLevel, p.Level)
	if p.ArtistID != nil {
		keyed(FieldArtist, *p.ArtistID)
	}
	if p.ArtistLocation != nil {
		hash, err := geohash.Encode(*p.ArtistLocation, precision)
		if err != nil {
			return nil, errors.Wrap(err, "geohashing artist location")
		}
		keyed(FieldGeohash, hash)
	}
	parts := datalake.PartsOf(p.StartTime)
	recs = append(recs,
		fieldRecord{field: FieldWeekday, rec: gopilosa.Column{ColumnID: col, RowID: uint64(parts.Weekday)}},
		fieldRecord{field: FieldHour, rec: gopilosa.Column{ColumnID: col, RowID: uint64(parts.Hour)}},
		fieldRecord{field: FieldSessionID, rec: gopilosa.FieldValue{ColumnID: col, Value: p.SessionID}},
	)
	return recs, nil
}

type chanRecordIterator chan gopilosa.Record

func newChanRecordIterator() chanRecordIterator {
	return make(chan gopilosa.Record, 200000)
}

func (c chanRecordIterator) NextRecord() (gopilosa.Record, error) {
	b, ok := <-c
	if !ok {
		return b, io.EOF
	}
	return b, nil
}
