// Package etl wires the stores, formats and sinks selected by configuration
// into a datalake.Session and runs it.
package etl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/avro"
	"github.com/sparkify/datalake/aws/s3"
	"github.com/sparkify/datalake/boltdb"
	"github.com/sparkify/datalake/file"
	"github.com/sparkify/datalake/json"
	"github.com/sparkify/datalake/kafka"
	"github.com/sparkify/datalake/leveldb"
	"github.com/sparkify/datalake/logger"
	"github.com/sparkify/datalake/parquet"
	"github.com/sparkify/datalake/pilosa"
)

// Stage names.
const (
	StageSongs = "songs"
	StageLogs  = "logs"
)

// Main holds all config for an ETL run.
type Main struct {
	Input           string   `help:"Local directory or s3:// (s3a://, s3n://) URL holding song_data and log_data."`
	Output          string   `help:"Local directory or s3:// URL under which the tables are written."`
	SongPattern     string   `help:"Glob pattern of the song data objects, relative to the input."`
	LogPattern      string   `help:"Glob pattern of the log data objects, relative to the input."`
	Stages          []string `help:"Stages to run, in order: songs writes songs and artists, logs writes users, time and songplays."`
	Format          string   `help:"Output file format: parquet or avro."`
	Compression     string   `help:"Compression codec. parquet: snappy, gzip, zstd or none. avro: snappy, deflate or none."`
	MaxRowsPerFile  int      `help:"Start a new part file after this many rows. 0 means no limit."`
	ReadConcurrency int      `help:"Number of input objects read and parsed at once."`
	Strict          bool     `help:"Fail on the first malformed record instead of logging and skipping it."`
	Overwrite       bool     `help:"Remove existing table directories before writing."`
	Dedupe          string   `help:"Where the keys of distinct tables are kept: memory, leveldb or bolt."`
	DedupePath      string   `help:"Directory for leveldb or bolt dedupe stores. Empty means a temporary directory."`

	AWSRegion          string `help:"AWS region."`
	AWSEndpoint        string `help:"S3 endpoint override, e.g. for a local S3 compatible server."`
	AWSAccessKeyID     string `help:"AWS access key id. Empty uses the default credential chain."`
	AWSSecretAccessKey string `help:"AWS secret access key."`

	KafkaHosts       []string `help:"Kafka brokers to notify of finished tables. Empty disables notifications."`
	KafkaTopic       string   `help:"Kafka topic for table notifications."`
	PilosaHosts      []string `help:"Pilosa hosts to index songplays into. Empty disables indexing."`
	PilosaIndex      string   `help:"Pilosa index for songplays."`
	PilosaBatchSize  int      `help:"Batch size for Pilosa imports."`
	GeohashPrecision int      `help:"Length of the artist location geohash indexed in Pilosa."`

	LogLevel  string `help:"Log level: trace, debug, info, warn, error or disabled."`
	LogFormat string `help:"Log format: console or json."`
	Progress  bool   `help:"Show a progress bar of the input objects read."`
	Config    string `help:"Configuration file: TOML, YAML or JSON by extension, or an INI file such as dl.cfg."`

	Stderr io.Writer `flag:"-"`

	log     zerolog.Logger
	awsSess *session.Session
	stats   []datalake.TableStats
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		SongPattern:      datalake.DefaultSongPattern,
		LogPattern:       datalake.DefaultLogPattern,
		Stages:           []string{StageSongs, StageLogs},
		Format:           "parquet",
		Compression:      "snappy",
		ReadConcurrency:  4,
		Overwrite:        true,
		Dedupe:           "memory",
		AWSRegion:        "us-west-2",
		KafkaTopic:       "sparkify-tables",
		PilosaIndex:      "sparkify",
		PilosaBatchSize:  1000,
		GeohashPrecision: 6,
		LogLevel:         "info",
		LogFormat:        "console",
		Stderr:           os.Stderr,
	}
}

// Stats returns the stats of the tables written by the last run.
func (m *Main) Stats() []datalake.TableStats { return m.stats }

func (m *Main) validate() error {
	if m.Input == "" {
		return errors.New("an input location is required")
	}
	if m.Output == "" {
		return errors.New("an output location is required")
	}
	if len(m.Stages) == 0 {
		return errors.New("no stages to run")
	}
	for _, stage := range m.Stages {
		if stage != StageSongs && stage != StageLogs {
			return errors.Errorf("unknown stage '%s', expected %s or %s", stage, StageSongs, StageLogs)
		}
	}
	if m.ReadConcurrency < 1 {
		return errors.Errorf("read concurrency must be at least 1, got %d", m.ReadConcurrency)
	}
	if m.MaxRowsPerFile < 0 {
		return errors.Errorf("max rows per file can't be negative, got %d", m.MaxRowsPerFile)
	}
	switch m.Dedupe {
	case "memory", "leveldb", "bolt":
	default:
		return errors.Errorf("unknown dedupe store '%s', expected memory, leveldb or bolt", m.Dedupe)
	}
	if len(m.KafkaHosts) > 0 && m.KafkaTopic == "" {
		return errors.New("a kafka topic is required with kafka hosts")
	}
	if len(m.PilosaHosts) > 0 && m.PilosaIndex == "" {
		return errors.New("a pilosa index is required with pilosa hosts")
	}
	return nil
}

// Run runs the ETL.
func (m *Main) Run() error {
	return m.RunContext(context.Background())
}

// RunContext runs the configured stages in order, stopping at the first
// error.
func (m *Main) RunContext(ctx context.Context) (err error) {
	if err := m.validate(); err != nil {
		return errors.Wrap(err, "validating configuration")
	}
	start := time.Now()
	runID := uuid.New().String()
	m.log = logger.New(logger.Options{
		Level:        m.LogLevel,
		Format:       m.LogFormat,
		Component:    "etl",
		Writer:       m.Stderr,
		StaticFields: map[string]string{"run_id": runID},
	})
	m.stats = nil

	input, err := m.store(m.Input)
	if err != nil {
		return errors.Wrap(err, "getting input store")
	}
	output, err := m.store(m.Output)
	if err != nil {
		return errors.Wrap(err, "getting output store")
	}
	if m.Progress {
		input = newProgressStore(input, m.Stderr)
	}
	format, err := m.format()
	if err != nil {
		return errors.Wrap(err, "getting format")
	}
	dedupe, cleanup, err := m.deduperFactory(runID)
	if err != nil {
		return errors.Wrap(err, "getting dedupe store")
	}
	defer cleanup()

	opts := []datalake.SessionOption{
		datalake.OptSessionFormat(format),
		datalake.OptSessionDecoder(json.Decoder(json.OptSrcSubjectAt(datalake.OriginKey))),
		datalake.OptSessionDeduper(dedupe),
		datalake.OptSessionLogger(m.log),
		datalake.OptSessionRunID(runID),
		datalake.OptSessionPatterns(m.SongPattern, m.LogPattern),
		datalake.OptSessionReadConcurrency(m.ReadConcurrency),
		datalake.OptSessionMaxRowsPerFile(m.MaxRowsPerFile),
		datalake.OptSessionStrict(m.Strict),
		datalake.OptSessionOverwrite(m.Overwrite),
	}

	if len(m.KafkaHosts) > 0 {
		notifier, nerr := kafka.NewNotifier(m.KafkaHosts, m.KafkaTopic)
		if nerr != nil {
			return errors.Wrap(nerr, "getting kafka notifier")
		}
		defer func() {
			if cerr := notifier.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "closing kafka notifier")
			}
		}()
		opts = append(opts, datalake.OptSessionNotifier(notifier))
	}
	if len(m.PilosaHosts) > 0 && m.runs(StageLogs) {
		indexer, ierr := pilosa.NewIndexer(m.PilosaHosts, m.PilosaIndex,
			pilosa.OptIndexerBatchSize(m.PilosaBatchSize),
			pilosa.OptIndexerGeohashPrecision(m.GeohashPrecision),
			pilosa.OptIndexerLogger(logger.Named(m.log, "pilosa")))
		if ierr != nil {
			return errors.Wrap(ierr, "setting up Pilosa")
		}
		defer func() {
			if cerr := indexer.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "closing pilosa indexer")
			}
		}()
		opts = append(opts, datalake.OptSessionIndexer(indexer))
	}

	s := datalake.NewSession(input, output, opts...)
	m.log.Info().Str("input", input.String()).Str("output", output.String()).
		Str("format", format.Name()).Strs("stages", m.Stages).Msg("starting run")
	for _, stage := range m.Stages {
		var stats []datalake.TableStats
		switch stage {
		case StageSongs:
			stats, err = datalake.ProcessSongData(ctx, s)
		case StageLogs:
			stats, err = datalake.ProcessLogData(ctx, s)
		}
		m.stats = append(m.stats, stats...)
		if err != nil {
			return errors.Wrapf(err, "running %s stage", stage)
		}
	}
	m.log.Info().Dur("took", time.Since(start)).Int("tables", len(m.stats)).Msg("run complete")
	return nil
}

func (m *Main) runs(stage string) bool {
	for _, s := range m.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// store gets the store for a location, which is either an S3 URL or a local
// directory.
func (m *Main) store(loc string) (datalake.Store, error) {
	if bucket, prefix, ok := s3.ParseURL(loc); ok {
		if m.awsSess == nil {
			sess, err := s3.NewSession(s3.Config{
				Region:          m.AWSRegion,
				Endpoint:        m.AWSEndpoint,
				AccessKeyID:     m.AWSAccessKeyID,
				SecretAccessKey: m.AWSSecretAccessKey,
			})
			if err != nil {
				return nil, errors.Wrap(err, "getting AWS session")
			}
			m.awsSess = sess
		}
		return s3.NewStore(m.awsSess, bucket, prefix), nil
	}
	if strings.Contains(loc, "://") {
		return nil, errors.Errorf("unsupported location '%s'", loc)
	}
	return file.NewStore(loc), nil
}

func (m *Main) format() (datalake.Format, error) {
	switch strings.ToLower(m.Format) {
	case "parquet":
		f, err := parquet.NewFormat(m.Compression)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "avro":
		f, err := avro.NewFormat(m.Compression)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, errors.Errorf("unknown format '%s', expected parquet or avro", m.Format)
}

// deduperFactory returns the configured DeduperFactory and a function which
// removes any directory made for it.
func (m *Main) deduperFactory(runID string) (datalake.DeduperFactory, func(), error) {
	nop := func() {}
	if m.Dedupe == "memory" {
		return datalake.NewMapDeduperFactory(), nop, nil
	}
	dir := m.DedupePath
	cleanup := nop
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "sparkify-dedupe-"+runID)
		cleanup = func() { os.RemoveAll(dir) }
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nop, errors.Wrap(err, "making dedupe directory")
	}
	if m.Dedupe == "bolt" {
		return boltdb.NewDeduperFactory(dir), cleanup, nil
	}
	return leveldb.NewDeduperFactory(dir), cleanup, nil
}
