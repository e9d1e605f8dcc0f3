package client

import (
	"context"

	"github.com/wkalt/strata/stream"
)

/*
client provides transport clients for the storage service. StreamClient and
Stream describe the remote surface: streams are provisioned on first append,
so opening a stream that has never been written succeeds and reads of it are
empty. Remote implements the surface over HTTP, and Resilient wraps any
implementation for callers that must ride through transient outages.
*/

////////////////////////////////////////////////////////////////////////////////

// FetchResult carries one contiguous run of batches from a fetch. NextOffset
// is where a subsequent fetch should resume, and equals the requested start
// when nothing was found.
type FetchResult struct {
	Records    []stream.RecordBatch `json:"records"`
	NextOffset uint64               `json:"nextOffset"`
	SizeBytes  int                  `json:"sizeBytes"`
}

// Stream is a handle on one stream of the storage service.
type Stream interface {
	// ID returns the stream ID the handle is bound to.
	ID() uint64

	// Append stages a batch on the stream and returns its log offset once
	// it is durable.
	Append(ctx context.Context, record stream.RecordBatch) (uint64, error)

	// Fetch returns the contiguous run of batches beginning at start,
	// bounded by end and maxBytes. A maxBytes of zero or less means no
	// byte budget.
	Fetch(ctx context.Context, start, end uint64, maxBytes int) (FetchResult, error)

	// Flush migrates the stream's cached data to object storage now.
	Flush(ctx context.Context) error

	// Close releases the handle. The stream's data is unaffected.
	Close(ctx context.Context) error
}

// StreamClient opens streams on the storage service.
type StreamClient interface {
	Open(ctx context.Context, streamID uint64) (Stream, error)
	Close() error
}
