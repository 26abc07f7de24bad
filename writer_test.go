package datalake_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/test"
)

func TestTableWriterPartitionsAndRollover(t *testing.T) {
	store := newMemStore(nil)
	w := datalake.NewTableWriter(context.Background(), datalake.SongsTable, store, linesFormat{},
		datalake.OptWriterRunID("run1"),
		datalake.OptWriterMaxRowsPerFile(2),
	)
	for i, title := range []string{"a", "b", "c", "d", "e"} {
		year := int64(1969)
		if i == 4 {
			year = 0
		}
		err := w.Write(datalake.Song{SongID: "S" + title, Title: title, Year: year, ArtistID: "AR1"})
		test.ErrNil(t, err, "writing "+title)
	}
	st, err := w.Close()
	test.ErrNil(t, err, "closing")
	test.MustBe(t, datalake.TableStats{
		Table:      "songs",
		Location:   "mem://songstables",
		Rows:       5,
		Files:      3,
		Bytes:      st.Bytes,
		Partitions: 2,
	}, st)
	if st.Bytes == 0 {
		t.Errorf("expected bytes to be counted")
	}
	test.MustBe(t, []string{
		"songstables/_SUCCESS",
		"songstables/year=0/artist_id=AR1/part-00002-run1.jsonl",
		"songstables/year=1969/artist_id=AR1/part-00000-run1.jsonl",
		"songstables/year=1969/artist_id=AR1/part-00001-run1.jsonl",
	}, store.keys("songstables"))

	rows := store.lines("songstables/year=1969/artist_id=AR1/part-00001-run1.jsonl")
	test.MustBe(t, 2, len(rows))
	test.MustBe(t, "c", rows[0]["title"])
	test.MustBe(t, 0, len(store.objects["songstables/_SUCCESS"]))
}

func TestTableWriterDedupe(t *testing.T) {
	store := newMemStore(nil)
	w := datalake.NewTableWriter(context.Background(), datalake.UsersTable, store, linesFormat{},
		datalake.OptWriterDeduper(datalake.NewMapDeduper()),
	)
	for _, u := range []datalake.User{
		{UserID: "39", Level: "free"},
		{UserID: "8", Level: "free"},
		{UserID: "39", Level: "free"},
		{UserID: "8", Level: "paid"},
	} {
		test.ErrNil(t, w.Write(u), "writing")
	}
	st, err := w.Close()
	test.ErrNil(t, err, "closing")
	test.MustBe(t, int64(3), st.Rows)
	test.MustBe(t, int64(1), st.Duplicates)
	test.MustBe(t, 1, st.Partitions)
	test.MustBe(t, 3, len(store.lines("userstables/part-00000-0.jsonl")))
}

func TestTableWriterEmpty(t *testing.T) {
	store := newMemStore(nil)
	w := datalake.NewTableWriter(context.Background(), datalake.SongplaysTable, store, linesFormat{})
	st, err := w.Close()
	test.ErrNil(t, err, "closing")
	test.MustBe(t, 0, st.Files)
	test.MustBe(t, []string{"songplays/_SUCCESS"}, store.keys("songplays"))
}

func TestTableWriterAbort(t *testing.T) {
	store := newMemStore(nil)
	w := datalake.NewTableWriter(context.Background(), datalake.UsersTable, store, linesFormat{})
	test.ErrNil(t, w.Write(datalake.User{UserID: "39"}), "writing")
	w.Abort()
	if store.has("userstables/_SUCCESS") {
		t.Fatalf("aborted table has a success marker")
	}
}

func TestTableWriterCreateError(t *testing.T) {
	store := newMemStore(nil)
	store.failKey = ".jsonl"
	w := datalake.NewTableWriter(context.Background(), datalake.UsersTable, store, linesFormat{})
	err := w.Write(datalake.User{UserID: "39"})
	if err == nil || !strings.Contains(err.Error(), "create refused") {
		t.Fatalf("expected create error, got %v", err)
	}

	store = newMemStore(nil)
	store.failKey = datalake.SuccessMarker
	w = datalake.NewTableWriter(context.Background(), datalake.UsersTable, store, linesFormat{})
	test.ErrNil(t, w.Write(datalake.User{UserID: "39"}), "writing")
	if _, err := w.Close(); err == nil {
		t.Fatalf("expected error writing the success marker")
	}
}

type closeErrDeduper struct {
	*datalake.MapDeduper
}

func (closeErrDeduper) Close() error { return errors.New("deduper stuck") }

type closeErrFormat struct {
	linesFormat
}

func (closeErrFormat) NewEncoder(w io.Writer, t *datalake.Table) (datalake.Encoder, error) {
	return closeErrEncoder{}, nil
}

type closeErrEncoder struct{}

func (closeErrEncoder) Encode(row datalake.Row) error { return nil }
func (closeErrEncoder) Close() error                  { return errors.New("footer lost") }

func TestTableWriterAbortLogs(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore(nil)
	w := datalake.NewTableWriter(context.Background(), datalake.UsersTable, store, closeErrFormat{},
		datalake.OptWriterDeduper(closeErrDeduper{datalake.NewMapDeduper()}),
		datalake.OptWriterLogger(zerolog.New(&buf)),
	)
	test.ErrNil(t, w.Write(datalake.User{UserID: "39"}), "writing")
	w.Abort()
	out := buf.String()
	for _, want := range []string{`"level":"warn"`, "footer lost", "deduper stuck", `"table":"users"`} {
		if !strings.Contains(out, want) {
			t.Errorf("abort log is missing %s: %s", want, out)
		}
	}
}
