package client

import "errors"

// ErrStreamClosed is returned for calls on a closed stream, including
// pending fetch retries at the time of close.
var ErrStreamClosed = errors.New("stream already closed")

// ErrClientClosed is returned for calls issued or retried after the client
// has closed.
var ErrClientClosed = errors.New("client closed")
