package engine

const (
	// DefaultQueueSize is the capacity of the confirmation queue. Appends
	// block once this many batches are staged but unresolved.
	DefaultQueueSize = 16384

	// DefaultUploadQueueSize is the number of sealed blocks that may await
	// migration before block sealing waits on the migration loop.
	DefaultUploadQueueSize = 64
)

type config struct {
	queueSize       int
	uploadQueueSize int
}

// Option is an option for the engine.
type Option func(*config)

// WithQueueSize sets the capacity of the confirmation queue.
func WithQueueSize(n int) Option {
	return func(c *config) {
		c.queueSize = n
	}
}

// WithUploadQueueSize sets the capacity of the migration queue.
func WithUploadQueueSize(n int) Option {
	return func(c *config) {
		c.uploadQueueSize = n
	}
}
