// Package datalake moves the sparkify song and event logs out of object
// storage and back in as a small star schema of partitioned columnar files.
//
// A run is a sequence of four steps, and each has an interface in this package
// so that the pieces can be swapped out independently.
//
// 1. Source
//
//    A Store lists the objects matching a glob pattern and hands them out one
//    at a time through a RawSource. Each object is decoded into records by a
//    Source; the json package decodes line separated JSON, tagging every
//    record with the object and line it came from.
//
// 2. Parser
//
//    Records are loose maps. ParseSongRecord and ParseLogEvent coerce them
//    into SongRecord and LogEvent the way a schema-on-read JSON reader would:
//    numbers and numeric strings are interchangeable and nulls become zero
//    values. Records which cannot be coerced are skipped (or fail the run in
//    strict mode).
//
// 3. Transform
//
//    Song records become rows of the songs and artists tables. Log events are
//    filtered down to song plays and become rows of the users, time and
//    songplays tables, the last one joined against the song records on title
//    and artist name. Dimension tables are made distinct through a Deduper.
//
// 4. Writer
//
//    A TableWriter lays rows out in Hive style partition directories and
//    encodes them with a Format (parquet or avro) into part files on the output
//    Store. Finished tables can be announced through a Notifier, and song plays
//    can additionally be indexed into Pilosa through a SongplayIndexer.
//
// The whole run is described by a Session which is built once and passed
// explicitly to ProcessSongData and ProcessLogData.
package datalake
