package datalake_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/test"
)

func strp(s string) *string { return &s }

func floatp(f float64) *float64 { return &f }

func TestRowKeys(t *testing.T) {
	same := func(a, b datalake.Row) bool { return bytes.Equal(a.Key(), b.Key()) }

	if !same(datalake.User{UserID: "8", Level: "free"}, datalake.User{UserID: "8", Level: "free"}) {
		t.Errorf("equal users have different keys")
	}
	if same(datalake.User{FirstName: "ab", LastName: "c"}, datalake.User{FirstName: "a", LastName: "bc"}) {
		t.Errorf("shifted column boundaries give equal keys")
	}
	if same(datalake.User{UserID: "8", Level: "free"}, datalake.User{UserID: "8", Level: "paid"}) {
		t.Errorf("users differing in level have equal keys")
	}
	if same(datalake.Artist{ArtistID: "A"}, datalake.Artist{ArtistID: "A", Latitude: floatp(0)}) {
		t.Errorf("null and zero latitude give equal keys")
	}
	if !same(datalake.Song{Duration: 0}, datalake.Song{Duration: math.Copysign(0, -1)}) {
		t.Errorf("0 and -0 durations give different keys")
	}
	if same(datalake.Songplay{SongID: nil}, datalake.Songplay{SongID: strp("")}) {
		t.Errorf("null and empty song id give equal keys")
	}
}

func TestMapDeduper(t *testing.T) {
	d := datalake.NewMapDeduper()
	for i, tst := range []struct {
		key  string
		seen bool
	}{
		{"a", false}, {"b", false}, {"a", true}, {"", false}, {"", true},
	} {
		seen, err := d.Seen([]byte(tst.key))
		test.ErrNil(t, err, "Seen")
		if seen != tst.seen {
			t.Errorf("%d: Seen(%q) = %v, expected %v", i, tst.key, seen, tst.seen)
		}
	}
	test.MustBe(t, 3, d.Len())
	test.ErrNil(t, d.Close(), "closing")
}

func TestSongAndArtistFromRecord(t *testing.T) {
	r := &datalake.SongRecord{
		ArtistID:        "ARMJAGH1187FB546F3",
		ArtistLatitude:  floatp(35.14968),
		ArtistLongitude: floatp(-90.04892),
		ArtistLocation:  "Memphis, TN",
		ArtistName:      "The Box Tops",
		SongID:          "SOCIWDW12A8C13D406",
		Title:           "Soul Deep",
		Duration:        148.03546,
		Year:            1969,
	}
	test.MustBe(t, datalake.Song{
		SongID:   "SOCIWDW12A8C13D406",
		Title:    "Soul Deep",
		Duration: 148.03546,
		Year:     1969,
		ArtistID: "ARMJAGH1187FB546F3",
	}, datalake.SongFromRecord(r))
	a := datalake.ArtistFromRecord(r)
	test.MustBe(t, "The Box Tops", a.Name)
	test.MustBe(t, map[string]interface{}{
		"artist_id":        "ARMJAGH1187FB546F3",
		"artist_name":      "The Box Tops",
		"artist_location":  "Memphis, TN",
		"artist_latitude":  35.14968,
		"artist_longitude": -90.04892,
	}, a.Record())
	test.MustBe(t, nil, datalake.Artist{}.Record()["artist_latitude"])
}

func TestSongplaysFromEvent(t *testing.T) {
	idx := datalake.NewSongIndex()
	soulDeep := &datalake.SongRecord{
		SongID: "SOCIWDW12A8C13D406", ArtistID: "ARMJAGH1187FB546F3",
		Title: "Soul Deep", ArtistName: "The Box Tops",
		ArtistLatitude: floatp(35.14968), ArtistLongitude: floatp(-90.04892),
	}
	idx.Add(soulDeep)
	idx.Add(soulDeep)
	idx.Add(&datalake.SongRecord{SongID: "SOMZWCG12A8C13C480", ArtistID: "ARD7TVE1187B99BFB1", Title: "I Didn't Mean To", ArtistName: "Casual"})
	test.MustBe(t, 3, idx.Len())

	ids := datalake.NewNexter()
	e := &datalake.LogEvent{
		Artist: strp("The Box Tops"), Song: strp("Soul Deep"),
		Ts: 1541105830796, UserID: "39", Level: "free", SessionID: 38,
		Location: "San Francisco-Oakland-Hayward, CA", UserAgent: "Mozilla/5.0",
		Page: "NextSong", Origin: "events.json#1",
	}
	plays := datalake.SongplaysFromEvent(e, idx, ids)
	if len(plays) != 2 {
		t.Fatalf("expected a row per matching song, got %d", len(plays))
	}
	for i, p := range plays {
		test.MustBe(t, int64(i), p.SongplayID)
		test.MustBe(t, "SOCIWDW12A8C13D406", *p.SongID)
		test.MustBe(t, "ARMJAGH1187FB546F3", *p.ArtistID)
		test.MustBe(t, int32(2018), p.Year)
		test.MustBe(t, int32(11), p.Month)
		test.MustBe(t, "events.json#1", p.Origin)
		test.MustBe(t, &datalake.Location{Latitude: 35.14968, Longitude: -90.04892}, p.ArtistLocation)
	}

	casual := *e
	casual.Artist, casual.Song = strp("Casual"), strp("I Didn't Mean To")
	plays = datalake.SongplaysFromEvent(&casual, idx, ids)
	test.MustBe(t, 1, len(plays))
	test.MustBe(t, int64(2), plays[0].SongplayID)
	if plays[0].ArtistLocation != nil {
		t.Errorf("expected no location for an artist without coordinates")
	}

	unmatched := *e
	unmatched.Song = strp("soul deep")
	plays = datalake.SongplaysFromEvent(&unmatched, idx, ids)
	test.MustBe(t, 1, len(plays))
	if plays[0].SongID != nil || plays[0].ArtistID != nil {
		t.Fatalf("expected null ids for an unmatched play, got %v %v", plays[0].SongID, plays[0].ArtistID)
	}
	test.MustBe(t, int64(3), plays[0].SongplayID)
	rec := plays[0].Record()
	test.MustBe(t, nil, rec["song_id"])
	test.MustBe(t, nil, rec["artist_id"])

	nullSong := *e
	nullSong.Song = nil
	plays = datalake.SongplaysFromEvent(&nullSong, idx, ids)
	if len(plays) != 1 || plays[0].SongID != nil {
		t.Fatalf("a null song should match nothing: %+v", plays)
	}
}

func TestNexter(t *testing.T) {
	n := datalake.NewNexter(datalake.NexterStartFrom(19))
	if num := n.Next(); num != 19 {
		t.Fatalf("expected 19 for Next, but %d", num)
	}
	if num := n.Last(); num != 19 {
		t.Fatalf("expected 19 for Last, but %d", num)
	}
}

func TestPartitionPath(t *testing.T) {
	tests := []struct {
		name string
		by   []string
		rec  map[string]interface{}
		exp  string
	}{
		{name: "none", by: nil, rec: map[string]interface{}{"year": int64(1969)}, exp: ""},
		{
			name: "songs",
			by:   []string{"year", "artist_id"},
			rec:  map[string]interface{}{"year": int64(1969), "artist_id": "ARMJAGH1187FB546F3"},
			exp:  "year=1969/artist_id=ARMJAGH1187FB546F3",
		},
		{
			name: "time",
			by:   []string{"year", "month"},
			rec:  map[string]interface{}{"year": int32(2018), "month": int32(11)},
			exp:  "year=2018/month=11",
		},
		{
			name: "escaped",
			by:   []string{"artist_id"},
			rec:  map[string]interface{}{"artist_id": "AC/DC: 50%=\"x\""},
			exp:  "artist_id=AC%2FDC%3A 50%25%3D%22x%22",
		},
		{
			name: "null",
			by:   []string{"artist_id"},
			rec:  map[string]interface{}{"artist_id": nil},
			exp:  "artist_id=" + datalake.DefaultPartition,
		},
		{
			name: "empty",
			by:   []string{"artist_id"},
			rec:  map[string]interface{}{"artist_id": ""},
			exp:  "artist_id=" + datalake.DefaultPartition,
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			test.MustBe(t, tst.exp, datalake.PartitionPath(tst.by, tst.rec))
		})
	}
}

func TestTableColumns(t *testing.T) {
	names := func(cols []datalake.Column) []string {
		var s []string
		for _, c := range cols {
			s = append(s, c.Name)
		}
		return s
	}
	test.MustBe(t, []string{"song_id", "title", "duration"}, names(datalake.SongsTable.DataColumns()))
	test.MustBe(t, []string{"ts_key", "start_time", "hour", "day", "week", "weekday"}, names(datalake.TimeTable.DataColumns()))
	test.MustBe(t, 5, len(datalake.ArtistsTable.DataColumns()))
	if !datalake.SongplaysTable.IsPartition("month") || datalake.SongplaysTable.IsPartition("level") {
		t.Errorf("unexpected songplays partitioning")
	}
	for _, tbl := range datalake.Tables {
		rec := tbl.Model.Record()
		for _, c := range tbl.ColumnNames() {
			if _, ok := rec[c]; !ok {
				t.Errorf("%s rows have no %s column", tbl.Name, c)
			}
		}
		test.MustBe(t, len(tbl.Columns), len(rec), tbl.Name)
	}
}
