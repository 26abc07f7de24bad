package datalake

import (
	"time"
)

// ColumnType is the logical type of a table column.
type ColumnType int

// Column types.
const (
	String ColumnType = iota
	Int32
	Int64
	Double
	Timestamp
)

func (t ColumnType) String() string {
	switch t {
	case String:
		return "string"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Double:
		return "double"
	case Timestamp:
		return "timestamp"
	}
	return "unknown"
}

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Table describes an output table. Columns lists every column of the table
// in file order followed by the partition columns; partition columns live in
// the directory names rather than in the files. Model is a zero value of the
// Go type of the table's rows.
type Table struct {
	Name        string
	Dir         string
	Columns     []Column
	PartitionBy []string
	Model       Row
}

// IsPartition reports whether col is one of the partition columns of t.
func (t *Table) IsPartition(col string) bool {
	for _, p := range t.PartitionBy {
		if p == col {
			return true
		}
	}
	return false
}

// DataColumns returns the columns which are stored inside the files.
func (t *Table) DataColumns() []Column {
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !t.IsPartition(c.Name) {
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnNames returns the names of all columns of t.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Location is a point on the globe.
type Location struct {
	Latitude  float64
	Longitude float64
}

// The star schema.
var (
	SongsTable = &Table{
		Name: "songs",
		Dir:  "songstables",
		Columns: []Column{
			{Name: "song_id", Type: String},
			{Name: "title", Type: String},
			{Name: "duration", Type: Double},
			{Name: "year", Type: Int64},
			{Name: "artist_id", Type: String},
		},
		PartitionBy: []string{"year", "artist_id"},
		Model:       Song{},
	}

	ArtistsTable = &Table{
		Name: "artists",
		Dir:  "artiststables",
		Columns: []Column{
			{Name: "artist_id", Type: String},
			{Name: "artist_name", Type: String},
			{Name: "artist_location", Type: String},
			{Name: "artist_latitude", Type: Double, Nullable: true},
			{Name: "artist_longitude", Type: Double, Nullable: true},
		},
		Model: Artist{},
	}

	UsersTable = &Table{
		Name: "users",
		Dir:  "userstables",
		Columns: []Column{
			{Name: "user_id", Type: String},
			{Name: "first_name", Type: String},
			{Name: "last_name", Type: String},
			{Name: "gender", Type: String},
			{Name: "level", Type: String},
		},
		Model: User{},
	}

	TimeTable = &Table{
		Name: "time",
		Dir:  "timetables",
		Columns: []Column{
			{Name: "ts_key", Type: Int64},
			{Name: "start_time", Type: Timestamp},
			{Name: "hour", Type: Int32},
			{Name: "day", Type: Int32},
			{Name: "week", Type: Int32},
			{Name: "weekday", Type: Int32},
			{Name: "year", Type: Int32},
			{Name: "month", Type: Int32},
		},
		PartitionBy: []string{"year", "month"},
		Model:       TimeRow{},
	}

	SongplaysTable = &Table{
		Name: "songplays",
		Dir:  "songplays",
		Columns: []Column{
			{Name: "songplay_id", Type: Int64},
			{Name: "ts_key", Type: Int64},
			{Name: "start_time", Type: Timestamp},
			{Name: "user_id", Type: String},
			{Name: "level", Type: String},
			{Name: "song_id", Type: String, Nullable: true},
			{Name: "artist_id", Type: String, Nullable: true},
			{Name: "session_id", Type: Int64},
			{Name: "location", Type: String},
			{Name: "user_agent", Type: String},
			{Name: "year", Type: Int32},
			{Name: "month", Type: Int32},
		},
		PartitionBy: []string{"year", "month"},
		Model:       Songplay{},
	}
)

// Tables lists the tables in the order a full run writes them.
var Tables = []*Table{SongsTable, ArtistsTable, UsersTable, TimeTable, SongplaysTable}

// Song is a row of the songs table.
type Song struct {
	SongID   string  `parquet:"song_id"`
	Title    string  `parquet:"title"`
	Duration float64 `parquet:"duration"`
	Year     int64   `parquet:"-"`
	ArtistID string  `parquet:"-"`
}

func (s Song) Key() []byte {
	return rowKey(nil).str(s.SongID).str(s.Title).float(s.Duration).int(s.Year).str(s.ArtistID)
}

func (s Song) Record() map[string]interface{} {
	return map[string]interface{}{
		"song_id":   s.SongID,
		"title":     s.Title,
		"duration":  s.Duration,
		"year":      s.Year,
		"artist_id": s.ArtistID,
	}
}

// Artist is a row of the artists table.
type Artist struct {
	ArtistID  string   `parquet:"artist_id"`
	Name      string   `parquet:"artist_name"`
	Location  string   `parquet:"artist_location"`
	Latitude  *float64 `parquet:"artist_latitude,optional"`
	Longitude *float64 `parquet:"artist_longitude,optional"`
}

func (a Artist) Key() []byte {
	return rowKey(nil).str(a.ArtistID).str(a.Name).str(a.Location).optFloat(a.Latitude).optFloat(a.Longitude)
}

func (a Artist) Record() map[string]interface{} {
	return map[string]interface{}{
		"artist_id":        a.ArtistID,
		"artist_name":      a.Name,
		"artist_location":  a.Location,
		"artist_latitude":  optFloat(a.Latitude),
		"artist_longitude": optFloat(a.Longitude),
	}
}

// User is a row of the users table.
type User struct {
	UserID    string `parquet:"user_id"`
	FirstName string `parquet:"first_name"`
	LastName  string `parquet:"last_name"`
	Gender    string `parquet:"gender"`
	Level     string `parquet:"level"`
}

func (u User) Key() []byte {
	return rowKey(nil).str(u.UserID).str(u.FirstName).str(u.LastName).str(u.Gender).str(u.Level)
}

func (u User) Record() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    u.UserID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"gender":     u.Gender,
		"level":      u.Level,
	}
}

// TimeRow is a row of the time table.
type TimeRow struct {
	TsKey     int64     `parquet:"ts_key"`
	StartTime time.Time `parquet:"start_time,timestamp(millisecond)"`
	Hour      int32     `parquet:"hour"`
	Day       int32     `parquet:"day"`
	Week      int32     `parquet:"week"`
	Weekday   int32     `parquet:"weekday"`
	Year      int32     `parquet:"-"`
	Month     int32     `parquet:"-"`
}

func (t TimeRow) Key() []byte {
	return rowKey(nil).int(t.TsKey).time(t.StartTime).
		int(int64(t.Hour)).int(int64(t.Day)).int(int64(t.Week)).
		int(int64(t.Weekday)).int(int64(t.Year)).int(int64(t.Month))
}

func (t TimeRow) Record() map[string]interface{} {
	return map[string]interface{}{
		"ts_key":     t.TsKey,
		"start_time": t.StartTime,
		"hour":       t.Hour,
		"day":        t.Day,
		"week":       t.Week,
		"weekday":    t.Weekday,
		"year":       t.Year,
		"month":      t.Month,
	}
}

// Songplay is a row of the songplays fact table.
type Songplay struct {
	SongplayID int64     `parquet:"songplay_id"`
	TsKey      int64     `parquet:"ts_key"`
	StartTime  time.Time `parquet:"start_time,timestamp(millisecond)"`
	UserID     string    `parquet:"user_id"`
	Level      string    `parquet:"level"`
	SongID     *string   `parquet:"song_id,optional"`
	ArtistID   *string   `parquet:"artist_id,optional"`
	SessionID  int64     `parquet:"session_id"`
	Location   string    `parquet:"location"`
	UserAgent  string    `parquet:"user_agent"`
	Year       int32     `parquet:"-"`
	Month      int32     `parquet:"-"`

	// ArtistLocation is the location of the matched artist, if any. It is
	// not a column.
	ArtistLocation *Location `parquet:"-"`
	// Origin is the origin of the log event the row was derived from.
	Origin string `parquet:"-"`
}

func (p Songplay) Key() []byte {
	return rowKey(nil).int(p.SongplayID).int(p.TsKey).time(p.StartTime).
		str(p.UserID).str(p.Level).optStr(p.SongID).optStr(p.ArtistID).
		int(p.SessionID).str(p.Location).str(p.UserAgent).
		int(int64(p.Year)).int(int64(p.Month))
}

func (p Songplay) Record() map[string]interface{} {
	return map[string]interface{}{
		"songplay_id": p.SongplayID,
		"ts_key":      p.TsKey,
		"start_time":  p.StartTime,
		"user_id":     p.UserID,
		"level":       p.Level,
		"song_id":     optString(p.SongID),
		"artist_id":   optString(p.ArtistID),
		"session_id":  p.SessionID,
		"location":    p.Location,
		"user_agent":  p.UserAgent,
		"year":        p.Year,
		"month":       p.Month,
	}
}

func optFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func optString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
