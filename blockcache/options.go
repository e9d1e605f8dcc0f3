package blockcache

const megabyte = 1 << 20

type config struct {
	cacheSizeBytes int
	concurrency    int
}

// Option is an option for the object reader.
type Option func(*config)

// WithCacheSize sets the byte capacity of the fetched-section cache.
func WithCacheSize(bytes int) Option {
	return func(c *config) {
		c.cacheSizeBytes = bytes
	}
}

// WithFetchConcurrency bounds the number of concurrent storage fetches per
// read.
func WithFetchConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}
