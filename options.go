package docgo

import (
	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/index"
	"github.com/hupe1980/docgo/resource"
	"github.com/hupe1980/docgo/wal"
)

// Options contains configuration options for the database.
type Options struct {
	// Codec encodes documents, the snapshot and WAL payloads.
	Codec codec.Codec

	// Logger for structured logging. If nil, a no-op logger is used.
	Logger *Logger

	// Metrics collector for operational metrics. If nil, a no-op collector
	// is used.
	Metrics MetricsCollector

	// Indexer resolves queries into execution modes and entry streams.
	// If nil, the default tree indexer is used.
	Indexer index.Indexer

	// DisableWAL turns off write-ahead logging. Mutations are only durable
	// after an explicit Checkpoint or Close.
	DisableWAL bool

	// WALOptions customize the write-ahead log. The log directory is set by
	// Open and cannot be overridden here.
	WALOptions []func(o *wal.Options)

	// Resource bounds background work (checkpoints, backups).
	Resource resource.Config

	// Mmap enables the memory-mapped read path of the data file.
	Mmap bool

	// SyncWrites forces an fsync after every data-file append.
	SyncWrites bool
}

// DefaultOptions are the default database options.
var DefaultOptions = Options{}

// WithCodec sets the codec used for documents, snapshots and WAL payloads.
func WithCodec(c codec.Codec) func(*Options) {
	return func(o *Options) {
		o.Codec = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *Logger) func(*Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(m MetricsCollector) func(*Options) {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithIndexer sets a custom query indexer.
func WithIndexer(ix index.Indexer) func(*Options) {
	return func(o *Options) {
		o.Indexer = ix
	}
}

// WithoutWAL disables write-ahead logging.
func WithoutWAL() func(*Options) {
	return func(o *Options) {
		o.DisableWAL = true
	}
}

// WithWALOptions customizes the write-ahead log.
func WithWALOptions(optFns ...func(o *wal.Options)) func(*Options) {
	return func(o *Options) {
		o.WALOptions = append(o.WALOptions, optFns...)
	}
}

// WithResourceConfig bounds background work.
func WithResourceConfig(cfg resource.Config) func(*Options) {
	return func(o *Options) {
		o.Resource = cfg
	}
}

// WithMmap enables the memory-mapped read path.
func WithMmap() func(*Options) {
	return func(o *Options) {
		o.Mmap = true
	}
}

// WithSyncWrites forces an fsync after every data-file append.
func WithSyncWrites() func(*Options) {
	return func(o *Options) {
		o.SyncWrites = true
	}
}
