package datalake

import (
	"github.com/pkg/errors"
)

// SongRecord is one object of the song dataset.
type SongRecord struct {
	NumSongs        int64
	ArtistID        string
	ArtistLatitude  *float64
	ArtistLongitude *float64
	ArtistLocation  string
	ArtistName      string
	SongID          string
	Title           string
	Duration        float64
	Year            int64

	// Origin is "<object>#<line>" of the JSON the record was parsed from.
	Origin string
}

// LogEvent is one object of the event log dataset.
type LogEvent struct {
	Artist        *string
	Auth          string
	FirstName     string
	Gender        string
	ItemInSession int64
	LastName      string
	Length        *float64
	Level         string
	Location      string
	Method        string
	Page          string
	Registration  *float64
	SessionID     int64
	Song          *string
	Status        int64
	// Ts is milliseconds since the epoch.
	Ts        int64
	UserAgent string
	UserID    string

	Origin string
}

// Coordinates returns the artist's coordinates, or nil if either is
// missing.
func (r *SongRecord) Coordinates() *Location {
	if r.ArtistLatitude == nil || r.ArtistLongitude == nil {
		return nil
	}
	return &Location{Latitude: *r.ArtistLatitude, Longitude: *r.ArtistLongitude}
}

// ParseSongRecord parses a decoded JSON object into a SongRecord.
func ParseSongRecord(rec interface{}) (*SongRecord, error) {
	m, err := recordMap(rec)
	if err != nil {
		return nil, err
	}
	r := &fieldReader{m: m}
	s := &SongRecord{
		NumSongs:        r.int("num_songs"),
		ArtistID:        r.str("artist_id"),
		ArtistLatitude:  r.optFloat("artist_latitude"),
		ArtistLongitude: r.optFloat("artist_longitude"),
		ArtistLocation:  r.str("artist_location"),
		ArtistName:      r.str("artist_name"),
		SongID:          r.str("song_id"),
		Title:           r.str("title"),
		Duration:        r.float("duration"),
		Year:            r.int("year"),
		Origin:          origin(m),
	}
	if r.err != nil {
		return nil, errors.Wrap(r.err, "parsing song record")
	}
	return s, nil
}

// ParseLogEvent parses a decoded JSON object into a LogEvent.
func ParseLogEvent(rec interface{}) (*LogEvent, error) {
	m, err := recordMap(rec)
	if err != nil {
		return nil, err
	}
	r := &fieldReader{m: m}
	e := &LogEvent{
		Artist:        r.optStr("artist"),
		Auth:          r.str("auth"),
		FirstName:     r.str("firstName"),
		Gender:        r.str("gender"),
		ItemInSession: r.int("itemInSession"),
		LastName:      r.str("lastName"),
		Length:        r.optFloat("length"),
		Level:         r.str("level"),
		Location:      r.str("location"),
		Method:        r.str("method"),
		Page:          r.str("page"),
		Registration:  r.optFloat("registration"),
		SessionID:     r.int("sessionId"),
		Song:          r.optStr("song"),
		Status:        r.int("status"),
		Ts:            r.int("ts"),
		UserAgent:     r.str("userAgent"),
		UserID:        r.str("userId"),
		Origin:        origin(m),
	}
	if r.err != nil {
		return nil, errors.Wrap(r.err, "parsing log event")
	}
	return e, nil
}

func recordMap(rec interface{}) (map[string]interface{}, error) {
	m, ok := rec.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("expected a JSON object, but got %T", rec)
	}
	return m, nil
}

func origin(m map[string]interface{}) string {
	s, _ := m[OriginKey].(string)
	return s
}
