package datalake

import (
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// NopLogger returns a logger which logs nothing.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func logTableStats(log zerolog.Logger, st TableStats) {
	log.Info().
		Str("table", st.Table).
		Str("location", st.Location).
		Int64("rows", st.Rows).
		Int64("duplicates", st.Duplicates).
		Int("files", st.Files).
		Int("partitions", st.Partitions).
		Str("size", humanize.Bytes(uint64(st.Bytes))).
		Msg("wrote table")
}

func logIngestStats(log zerolog.Logger, what string, st IngestStats) {
	ev := log.Info()
	if st.Skipped > 0 {
		ev = log.Warn()
	}
	ev.Str("input", what).
		Int64("objects", st.Objects).
		Int64("records", st.Records).
		Int64("skipped", st.Skipped).
		Msg("read input")
}
