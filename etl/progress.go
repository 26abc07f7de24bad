package etl

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/sparkify/datalake"
)

// progressStore wraps a Store so that reading the objects of each opened
// pattern advances a progress bar.
type progressStore struct {
	datalake.Store
	w io.Writer
}

func newProgressStore(s datalake.Store, w io.Writer) *progressStore {
	return &progressStore{Store: s, w: w}
}

func (p *progressStore) Open(ctx context.Context, pattern string) (datalake.RawSource, error) {
	rs, err := p.Store.Open(ctx, pattern)
	if err != nil {
		return nil, err
	}
	total := -1
	if l, ok := rs.(interface{ Len() int }); ok {
		total = l.Len()
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(pattern),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.w) }),
	)
	return &progressSource{RawSource: rs, bar: bar}, nil
}

type progressSource struct {
	datalake.RawSource
	bar *progressbar.ProgressBar
}

func (p *progressSource) NextReader() (datalake.NamedReadCloser, error) {
	r, err := p.RawSource.NextReader()
	if err != nil {
		return r, err
	}
	return &progressReader{NamedReadCloser: r, bar: p.bar}, nil
}

// progressReader advances the bar when the object has been read.
type progressReader struct {
	datalake.NamedReadCloser
	bar *progressbar.ProgressBar
}

func (p *progressReader) Close() error {
	err := p.NamedReadCloser.Close()
	p.bar.Add(1)
	return err
}
