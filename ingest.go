package datalake

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// DecodeFunc returns a Source over the records of a single object.
type DecodeFunc func(r NamedReadCloser) Source

// ParseFunc turns a decoded record into a typed value such as *SongRecord.
type ParseFunc func(rec interface{}) (interface{}, error)

// IngestStats counts what an Ingester has read.
type IngestStats struct {
	Objects int64
	Records int64
	Skipped int64
}

// Ingester reads every object of a RawSource, decodes and parses its records
// and hands the parsed values to a single consumer.
type Ingester struct {
	// ParseConcurrency is the number of objects read and parsed at once.
	ParseConcurrency int
	// Strict makes the first unreadable record fail the run instead of
	// being logged and skipped.
	Strict bool
	Log    zerolog.Logger

	src    RawSource
	decode DecodeFunc
	parse  ParseFunc
}

// NewIngester gets a new Ingester.
func NewIngester(src RawSource, decode DecodeFunc, parse ParseFunc) *Ingester {
	return &Ingester{
		ParseConcurrency: 1,
		Log:              zerolog.Nop(),
		src:              src,
		decode:           decode,
		parse:            parse,
	}
}

// Run reads the source to the end. handle is called from a single goroutine
// for every parsed value; if it returns an error the readers are stopped and
// that error is returned.
func (n *Ingester) Run(ctx context.Context, handle func(val interface{}) error) (IngestStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stats IngestStats
	concurrency := n.ParseConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	vals := make(chan interface{}, 1024)
	p := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i := 0; i < concurrency; i++ {
		p.Go(func(ctx context.Context) error {
			return n.read(ctx, vals, &stats)
		})
	}
	readErr := make(chan error, 1)
	go func() {
		readErr <- p.Wait()
		close(vals)
	}()

	var handleErr error
	for val := range vals {
		if handleErr != nil {
			continue // drain so that readers blocked on send can exit
		}
		if err := handle(val); err != nil {
			handleErr = err
			cancel()
		}
	}
	err := <-readErr
	if handleErr != nil {
		return stats, handleErr
	}
	return stats, err
}

func (n *Ingester) read(ctx context.Context, vals chan<- interface{}, stats *IngestStats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		reader, err := n.src.NextReader()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "getting next reader")
		}
		atomic.AddInt64(&stats.Objects, 1)
		err = n.readObject(ctx, reader, vals, stats)
		cerr := reader.Close()
		if err != nil {
			return err
		}
		if cerr != nil {
			return errors.Wrapf(cerr, "closing %s", reader.Name())
		}
	}
}

func (n *Ingester) readObject(ctx context.Context, reader NamedReadCloser, vals chan<- interface{}, stats *IngestStats) error {
	src := n.decode(reader)
	for {
		rec, err := src.Record()
		if err == io.EOF {
			return nil
		} else if rerr, ok := err.(*RecordError); ok {
			if err := n.skip(rerr, stats); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return errors.Wrapf(err, "reading %s", reader.Name())
		}
		atomic.AddInt64(&stats.Records, 1)
		val, err := n.parse(rec)
		if err != nil {
			m, _ := rec.(map[string]interface{})
			o := origin(m)
			if o == "" {
				o = reader.Name()
			}
			if err := n.skip(&RecordError{Origin: o, Err: err}, stats); err != nil {
				return err
			}
			continue
		}
		select {
		case vals <- val:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *Ingester) skip(rerr *RecordError, stats *IngestStats) error {
	if n.Strict {
		return rerr
	}
	atomic.AddInt64(&stats.Skipped, 1)
	n.Log.Warn().Str("origin", rerr.Origin).Err(rerr.Err).Msg("skipping record")
	return nil
}
