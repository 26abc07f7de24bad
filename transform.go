package datalake

// SongFromRecord selects the songs table columns of a song record.
func SongFromRecord(r *SongRecord) Song {
	return Song{
		SongID:   r.SongID,
		Title:    r.Title,
		Duration: r.Duration,
		Year:     r.Year,
		ArtistID: r.ArtistID,
	}
}

// ArtistFromRecord selects the artists table columns of a song record.
func ArtistFromRecord(r *SongRecord) Artist {
	return Artist{
		ArtistID:  r.ArtistID,
		Name:      r.ArtistName,
		Location:  r.ArtistLocation,
		Latitude:  r.ArtistLatitude,
		Longitude: r.ArtistLongitude,
	}
}

// IsSongPlay reports whether e records a song being played. Only these
// events make it into the users, time and songplays tables.
func IsSongPlay(e *LogEvent) bool {
	return e.Page == "NextSong"
}

// UserFromEvent selects the users table columns of a log event.
func UserFromEvent(e *LogEvent) User {
	return User{
		UserID:    e.UserID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Gender:    e.Gender,
		Level:     e.Level,
	}
}

// TimeFromEvent derives the time table row of a log event.
func TimeFromEvent(e *LogEvent) TimeRow {
	start := EventTime(e.Ts)
	parts := PartsOf(start)
	return TimeRow{
		TsKey:     e.Ts,
		StartTime: start,
		Hour:      parts.Hour,
		Day:       parts.Day,
		Week:      parts.Week,
		Weekday:   parts.Weekday,
		Year:      parts.Year,
		Month:     parts.Month,
	}
}

type songKey struct {
	title  string
	artist string
}

// SongMatch is a song that a log event can be joined to.
type SongMatch struct {
	SongID   string
	ArtistID string
	Location *Location
}

// SongIndex is the song side of the songplays join, keyed on song title and
// artist name.
type SongIndex struct {
	songs map[songKey][]SongMatch
	n     int
}

// NewSongIndex returns an empty SongIndex.
func NewSongIndex() *SongIndex {
	return &SongIndex{songs: make(map[songKey][]SongMatch)}
}

// Add adds a song record to the index. Adding the same song twice makes it
// match twice, as a join against the raw song data would.
func (i *SongIndex) Add(r *SongRecord) {
	k := songKey{title: r.Title, artist: r.ArtistName}
	i.songs[k] = append(i.songs[k], SongMatch{
		SongID:   r.SongID,
		ArtistID: r.ArtistID,
		Location: r.Coordinates(),
	})
	i.n++
}

// Len returns the number of song records added.
func (i *SongIndex) Len() int { return i.n }

// Lookup returns every song with the given title and artist name. A null
// title or artist matches nothing.
func (i *SongIndex) Lookup(title, artist *string) []SongMatch {
	if title == nil || artist == nil {
		return nil
	}
	return i.songs[songKey{title: *title, artist: *artist}]
}

// SongplaysFromEvent left joins a song play event against idx. It returns
// one row per matching song, or a single row with null song and artist ids
// if nothing matches. Each row gets the next id from ids.
func SongplaysFromEvent(e *LogEvent, idx *SongIndex, ids INexter) []Songplay {
	start := EventTime(e.Ts)
	base := Songplay{
		TsKey:     e.Ts,
		StartTime: start,
		UserID:    e.UserID,
		Level:     e.Level,
		SessionID: e.SessionID,
		Location:  e.Location,
		UserAgent: e.UserAgent,
		Year:      int32(start.Year()),
		Month:     int32(start.Month()),
		Origin:    e.Origin,
	}
	matches := idx.Lookup(e.Song, e.Artist)
	if len(matches) == 0 {
		base.SongplayID = int64(ids.Next())
		return []Songplay{base}
	}
	plays := make([]Songplay, len(matches))
	for j, m := range matches {
		p := base
		p.SongplayID = int64(ids.Next())
		songID, artistID := m.SongID, m.ArtistID
		p.SongID = &songID
		p.ArtistID = &artistID
		p.ArtistLocation = m.Location
		plays[j] = p
	}
	return plays
}
