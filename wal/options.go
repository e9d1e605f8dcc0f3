package wal

/*
Options for the file-backed WAL.
*/

////////////////////////////////////////////////////////////////////////////////

import "time"

const megabyte = 1 << 20

type config struct {
	targetFileSize int
	flushInterval  time.Duration
}

// Option is a function that modifies the WAL configuration.
type Option func(*config)

// WithTargetFileSize sets the target size for WAL files. When the active file
// exceeds this size, the WAL will close it and rotate the log.
func WithTargetFileSize(size int) Option {
	return func(c *config) {
		c.targetFileSize = size
	}
}

// WithFlushInterval sets the polling interval of the sync loop. Appends are
// acknowledged in groups, after the sync that makes them durable.
func WithFlushInterval(d time.Duration) Option {
	return func(c *config) {
		c.flushInterval = d
	}
}
