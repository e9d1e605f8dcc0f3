package cache

/*
Options for the log cache.
*/

////////////////////////////////////////////////////////////////////////////////

const megabyte = 1 << 20

type config struct {
	blockSize int
}

// Option is a function that modifies the cache configuration.
type Option func(*config)

// WithBlockSize sets the byte bound of the active block. When an insert
// carries the active block to or past the bound, Put reports it full.
func WithBlockSize(size int) Option {
	return func(c *config) {
		c.blockSize = size
	}
}
