package datalake

import (
	"context"

	"github.com/pkg/errors"
)

func parseSong(rec interface{}) (interface{}, error)  { return ParseSongRecord(rec) }
func parseEvent(rec interface{}) (interface{}, error) { return ParseLogEvent(rec) }

// ProcessSongData reads the song data and writes the songs and artists
// tables.
func ProcessSongData(ctx context.Context, s *Session) ([]TableStats, error) {
	if err := s.validate(); err != nil {
		return nil, errors.Wrap(err, "validating session")
	}
	songData, err := s.open(ctx, "song data", s.SongPattern)
	if err != nil {
		return nil, errors.Wrap(err, "processing song data")
	}
	writers, err := s.newTableWriters(ctx, SongsTable, ArtistsTable)
	if err != nil {
		return nil, err
	}
	songs, artists := writers[0], writers[1]

	err = s.ingest(ctx, "song data", songData, parseSong, func(val interface{}) error {
		r := val.(*SongRecord)
		if err := songs.Write(SongFromRecord(r)); err != nil {
			return errors.Wrap(err, "writing song")
		}
		return errors.Wrap(artists.Write(ArtistFromRecord(r)), "writing artist")
	})
	if err != nil {
		abort(writers)
		return nil, errors.Wrap(err, "processing song data")
	}
	return s.finish(ctx, writers)
}

// ProcessLogData reads the log data and writes the users, time and songplays
// tables. The song data is read again to join song plays to songs.
func ProcessLogData(ctx context.Context, s *Session) ([]TableStats, error) {
	if err := s.validate(); err != nil {
		return nil, errors.Wrap(err, "validating session")
	}
	songData, err := s.open(ctx, "song data", s.SongPattern)
	if err != nil {
		return nil, errors.Wrap(err, "indexing song data")
	}
	logData, err := s.open(ctx, "log data", s.LogPattern)
	if err != nil {
		return nil, errors.Wrap(err, "processing log data")
	}
	idx := NewSongIndex()
	err = s.ingest(ctx, "song data", songData, parseSong, func(val interface{}) error {
		idx.Add(val.(*SongRecord))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "indexing song data")
	}
	s.Log.Debug().Int("songs", idx.Len()).Msg("built song index")

	writers, err := s.newTableWriters(ctx, UsersTable, TimeTable, SongplaysTable)
	if err != nil {
		return nil, err
	}
	users, times, plays := writers[0], writers[1], writers[2]
	ids := NewNexter()

	var events, songPlays int64
	err = s.ingest(ctx, "log data", logData, parseEvent, func(val interface{}) error {
		e := val.(*LogEvent)
		events++
		if !IsSongPlay(e) {
			return nil
		}
		songPlays++
		if err := users.Write(UserFromEvent(e)); err != nil {
			return errors.Wrap(err, "writing user")
		}
		if err := times.Write(TimeFromEvent(e)); err != nil {
			return errors.Wrap(err, "writing time")
		}
		for _, p := range SongplaysFromEvent(e, idx, ids) {
			if err := plays.Write(p); err != nil {
				return errors.Wrap(err, "writing songplay")
			}
			if s.Indexer != nil {
				if err := s.Indexer.IndexSongplay(&p); err != nil {
					return errors.Wrapf(err, "indexing songplay %d", p.SongplayID)
				}
			}
		}
		return nil
	})
	if err != nil {
		abort(writers)
		return nil, errors.Wrap(err, "processing log data")
	}
	s.Log.Info().Int64("events", events).Int64("song_plays", songPlays).Msg("filtered log data")
	return s.finish(ctx, writers)
}

// Run runs ProcessSongData and then ProcessLogData.
func Run(ctx context.Context, s *Session) ([]TableStats, error) {
	songStats, err := ProcessSongData(ctx, s)
	if err != nil {
		return nil, err
	}
	logStats, err := ProcessLogData(ctx, s)
	if err != nil {
		return songStats, err
	}
	return append(songStats, logStats...), nil
}

// open lists the input objects of a stage. Stages open their input before
// touching the output, so a missing input leaves the previous tables alone.
func (s *Session) open(ctx context.Context, what, pattern string) (RawSource, error) {
	rs, err := s.Input.Open(ctx, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s at %s/%s", what, s.Input, pattern)
	}
	return rs, nil
}

func (s *Session) ingest(ctx context.Context, what string, rs RawSource, parse ParseFunc, handle func(val interface{}) error) error {
	ing := NewIngester(rs, s.Decode, parse)
	ing.ParseConcurrency = s.ReadConcurrency
	ing.Strict = s.Strict
	ing.Log = s.Log
	st, err := ing.Run(ctx, handle)
	if err != nil {
		return err
	}
	logIngestStats(s.Log, what, st)
	return nil
}

// newTableWriters clears the tables' directories if the session overwrites,
// and returns a writer for each table. Every table but the fact table is
// distinct.
func (s *Session) newTableWriters(ctx context.Context, tables ...*Table) ([]*TableWriter, error) {
	writers := make([]*TableWriter, 0, len(tables))
	for _, t := range tables {
		if s.Overwrite {
			if err := s.Output.RemoveAll(ctx, t.Dir); err != nil {
				abort(writers)
				return nil, errors.Wrapf(err, "removing existing %s table", t.Name)
			}
		}
		opts := []WriterOption{
			OptWriterRunID(s.RunID),
			OptWriterMaxRowsPerFile(s.MaxRowsPerFile),
			OptWriterLogger(s.Log),
		}
		if t != SongplaysTable {
			d, err := s.NewDeduper(t.Name)
			if err != nil {
				abort(writers)
				return nil, errors.Wrapf(err, "getting deduper for %s", t.Name)
			}
			opts = append(opts, OptWriterDeduper(d))
		}
		writers = append(writers, NewTableWriter(ctx, t, s.Output, s.Format, opts...))
	}
	return writers, nil
}

func (s *Session) finish(ctx context.Context, writers []*TableWriter) ([]TableStats, error) {
	stats := make([]TableStats, 0, len(writers))
	for i, w := range writers {
		st, err := w.Close()
		if err != nil {
			abort(writers[i+1:])
			return stats, errors.Wrapf(err, "closing %s table", st.Table)
		}
		logTableStats(s.Log, st)
		if s.Notifier != nil {
			if err := s.Notifier.Notify(ctx, s.RunID, st); err != nil {
				abort(writers[i+1:])
				return stats, errors.Wrapf(err, "notifying about %s table", st.Table)
			}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func abort(writers []*TableWriter) {
	for _, w := range writers {
		w.Abort()
	}
}
