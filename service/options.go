package service

import (
	"log/slog"
	"time"

	"github.com/wkalt/strata/storage"
)

// StrataOption is a functional option for the strata service.
type StrataOption func(*StrataOptions)

// StrataOptions contains options for the strata service.
type StrataOptions struct {
	Port             int
	LogLevel         slog.Level
	DatabasePath     string
	WALDir           string
	WALFlushInterval time.Duration
	BlockSizeBytes   int
	QueueSize        int
	CacheSizeBytes   uint64
	AllowedOrigins   []string
	SharedKey        string
	StorageProvider  storage.Provider
}

// WithPort sets the port to listen on.
func WithPort(port int) StrataOption {
	return func(opts *StrataOptions) {
		opts.Port = port
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level slog.Level) StrataOption {
	return func(opts *StrataOptions) {
		opts.LogLevel = level
	}
}

// WithDatabasePath sets the path of the object manifest database.
func WithDatabasePath(path string) StrataOption {
	return func(opts *StrataOptions) {
		opts.DatabasePath = path
	}
}

// WithWALDir sets the write-ahead log directory.
func WithWALDir(dir string) StrataOption {
	return func(opts *StrataOptions) {
		opts.WALDir = dir
	}
}

// WithWALFlushInterval sets the interval between group fsyncs of the log.
func WithWALFlushInterval(d time.Duration) StrataOption {
	return func(opts *StrataOptions) {
		opts.WALFlushInterval = d
	}
}

// WithBlockSize sets the byte size at which cached blocks seal and migrate
// to object storage.
func WithBlockSize(size int) StrataOption {
	return func(opts *StrataOptions) {
		opts.BlockSizeBytes = size
	}
}

// WithQueueSize sets the capacity of the append confirmation queue.
func WithQueueSize(n int) StrataOption {
	return func(opts *StrataOptions) {
		opts.QueueSize = n
	}
}

// WithCacheSizeMegabytes sets the size of the migrated block cache in
// megabytes.
func WithCacheSizeMegabytes(size uint64) StrataOption {
	return func(opts *StrataOptions) {
		opts.CacheSizeBytes = size * 1024 * 1024
	}
}

// WithAllowedOrigins sets the allowed CORS origins.
func WithAllowedOrigins(origins []string) StrataOption {
	return func(opts *StrataOptions) {
		opts.AllowedOrigins = origins
	}
}

// WithSharedKey sets the shared key clients must present on every request.
func WithSharedKey(key string) StrataOption {
	return func(opts *StrataOptions) {
		opts.SharedKey = key
	}
}

// WithStorageProvider sets the object storage provider.
func WithStorageProvider(provider storage.Provider) StrataOption {
	return func(opts *StrataOptions) {
		opts.StorageProvider = provider
	}
}
