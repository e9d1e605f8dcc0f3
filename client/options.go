package client

import "time"

/*
Options for the resilient client.
*/

////////////////////////////////////////////////////////////////////////////////

type config struct {
	delay time.Duration
}

// Option is a function that modifies the client configuration.
type Option func(*config)

// WithRetryDelay sets the pause between attempts of a failed call.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}
