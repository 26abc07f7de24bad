package datalake

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Default input patterns, relative to the input store.
const (
	DefaultSongPattern = "song_data/A/*/*/*.json"
	DefaultLogPattern  = "log_data/*/*/*.json"
)

// Session holds everything a run needs. It replaces the implicit, globally
// initialized processing context of a dataframe engine and is passed
// explicitly to ProcessSongData and ProcessLogData.
type Session struct {
	Input  Store
	Output Store
	Format Format
	Decode DecodeFunc

	NewDeduper DeduperFactory
	Notifier   Notifier
	Indexer    SongplayIndexer
	Log        zerolog.Logger

	RunID           string
	SongPattern     string
	LogPattern      string
	ReadConcurrency int
	MaxRowsPerFile  int
	Strict          bool
	Overwrite       bool
}

// SessionOption is a functional option type for Session.
type SessionOption func(s *Session)

// OptSessionFormat sets the output file format.
func OptSessionFormat(f Format) SessionOption {
	return func(s *Session) {
		s.Format = f
	}
}

// OptSessionDecoder sets the function which decodes input objects into
// records.
func OptSessionDecoder(d DecodeFunc) SessionOption {
	return func(s *Session) {
		s.Decode = d
	}
}

// OptSessionDeduper sets the factory for the dedupers which make dimension
// tables distinct.
func OptSessionDeduper(f DeduperFactory) SessionOption {
	return func(s *Session) {
		s.NewDeduper = f
	}
}

// OptSessionNotifier sets the Notifier told about finished tables.
func OptSessionNotifier(n Notifier) SessionOption {
	return func(s *Session) {
		s.Notifier = n
	}
}

// OptSessionIndexer sets an indexer which receives every songplay.
func OptSessionIndexer(i SongplayIndexer) SessionOption {
	return func(s *Session) {
		s.Indexer = i
	}
}

// OptSessionLogger sets the logger.
func OptSessionLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.Log = l
	}
}

// OptSessionRunID overrides the generated run id.
func OptSessionRunID(id string) SessionOption {
	return func(s *Session) {
		s.RunID = id
	}
}

// OptSessionPatterns sets the glob patterns of the song and log data.
func OptSessionPatterns(song, log string) SessionOption {
	return func(s *Session) {
		s.SongPattern = song
		s.LogPattern = log
	}
}

// OptSessionReadConcurrency sets the number of input objects read at once.
func OptSessionReadConcurrency(n int) SessionOption {
	return func(s *Session) {
		s.ReadConcurrency = n
	}
}

// OptSessionMaxRowsPerFile caps the number of rows in a part file.
func OptSessionMaxRowsPerFile(n int) SessionOption {
	return func(s *Session) {
		s.MaxRowsPerFile = n
	}
}

// OptSessionStrict makes unreadable records fail the run.
func OptSessionStrict(strict bool) SessionOption {
	return func(s *Session) {
		s.Strict = strict
	}
}

// OptSessionOverwrite controls whether existing table directories are
// removed before they are written.
func OptSessionOverwrite(overwrite bool) SessionOption {
	return func(s *Session) {
		s.Overwrite = overwrite
	}
}

// NewSession returns a Session reading from input and writing to output with
// the options applied.
func NewSession(input, output Store, opts ...SessionOption) *Session {
	s := &Session{
		Input:           input,
		Output:          output,
		NewDeduper:      NewMapDeduperFactory(),
		Notifier:        nopNotifier{},
		Log:             NopLogger(),
		RunID:           uuid.New().String(),
		SongPattern:     DefaultSongPattern,
		LogPattern:      DefaultLogPattern,
		ReadConcurrency: 4,
		Overwrite:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) validate() error {
	switch {
	case s.Input == nil:
		return errors.New("session has no input store")
	case s.Output == nil:
		return errors.New("session has no output store")
	case s.Format == nil:
		return errors.New("session has no output format")
	case s.Decode == nil:
		return errors.New("session has no decoder")
	case s.NewDeduper == nil:
		return errors.New("session has no deduper factory")
	}
	return nil
}
