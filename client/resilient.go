package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util"
	"github.com/wkalt/strata/util/log"
)

/*
Resilient wraps a StreamClient for callers that must ride through transient
server outages. Failed opens, fetches, flushes, and closes are reattempted
on a fixed delay until they succeed, the context ends, or the owning client
closes; appends are never reattempted, since a timed-out append may still
have landed. Work is dispatched on two bounded worker pools - one for stream
management, one for the data path - so a slow management call cannot starve
appends and fetches, and completion never runs on the caller's goroutine.
Closing a stream fails its pending fetch retries instead of letting them run
forever. The retry timers and pools belong to the wrapper and stop with it.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	// DefaultRetryDelay is the pause between attempts of a failed call.
	DefaultRetryDelay = 3 * time.Second

	managementWorkers  = 1
	dataWorkers        = 4
	callbackQueueDepth = 1024
)

// Resilient wraps a StreamClient with retries and bounded dispatch.
type Resilient struct {
	transport  StreamClient
	delay      time.Duration
	management *pool
	data       *pool
	done       chan struct{}
	closeOnce  sync.Once
}

// NewResilient constructs a resilient wrapper around the transport. The
// wrapper owns the transport and closes it with Close.
func NewResilient(transport StreamClient, opts ...Option) *Resilient {
	conf := config{delay: DefaultRetryDelay}
	for _, opt := range opts {
		opt(&conf)
	}
	return &Resilient{
		transport:  transport,
		delay:      conf.delay,
		management: newPool(managementWorkers, callbackQueueDepth),
		data:       newPool(dataWorkers, callbackQueueDepth),
		done:       make(chan struct{}),
	}
}

// Open opens a stream, reattempting failed opens until one succeeds.
func (c *Resilient) Open(ctx context.Context, streamID uint64) *util.Future[*ResilientStream] {
	fut := util.NewFuture[*ResilientStream]()
	retry(ctx, c, c.management, fut, "open stream", func() error {
		return ctxErr(ctx)
	}, func() (*ResilientStream, error) {
		inner, err := c.transport.Open(ctx, streamID)
		if err != nil {
			return nil, err
		}
		return &ResilientStream{client: c, inner: inner}, nil
	})
	return fut
}

// Close stops the pools and any pending retries, failing their futures with
// ErrClientClosed, then closes the transport.
func (c *Resilient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.management.close()
		c.data.close()
		err = c.transport.Close()
	})
	return err
}

////////////////////////////////////////////////////////////////////////////////

// ResilientStream is a stream handle whose calls dispatch on the wrapper's
// pools.
type ResilientStream struct {
	client *Resilient
	inner  Stream
	closed atomic.Bool
}

// ID returns the stream ID the handle is bound to.
func (s *ResilientStream) ID() uint64 {
	return s.inner.ID()
}

// Append stages a batch on the stream. The returned future resolves with the
// batch's log offset. Failed appends are not reattempted: a timed-out append
// may still land, and reissuing it would duplicate data.
func (s *ResilientStream) Append(ctx context.Context, record stream.RecordBatch) *util.Future[uint64] {
	fut := util.NewFuture[uint64]()
	task := func() {
		if err := s.halt(ctx); err != nil {
			fut.Fail(err)
			return
		}
		offset, err := s.inner.Append(ctx, record)
		if err != nil {
			fut.Fail(err)
			return
		}
		fut.Complete(offset)
	}
	if !s.client.data.submit(task) {
		fut.Fail(ErrClientClosed)
	}
	return fut
}

// Fetch returns the contiguous run of batches beginning at start,
// reattempting failed fetches until one succeeds or the stream is closed.
func (s *ResilientStream) Fetch(ctx context.Context, start, end uint64, maxBytes int) *util.Future[FetchResult] {
	fut := util.NewFuture[FetchResult]()
	retry(ctx, s.client, s.client.data, fut, "fetch", func() error {
		return s.halt(ctx)
	}, func() (FetchResult, error) {
		return s.inner.Fetch(ctx, start, end, maxBytes)
	})
	return fut
}

// Flush migrates the stream's cached data to object storage, reattempting
// failed flushes, and returns once one succeeds.
func (s *ResilientStream) Flush(ctx context.Context) error {
	fut := util.NewFuture[struct{}]()
	retry(ctx, s.client, s.client.management, fut, "flush stream", func() error {
		return s.halt(ctx)
	}, func() (struct{}, error) {
		return struct{}{}, s.inner.Flush(ctx)
	})
	_, err := fut.Wait(ctx)
	return err
}

// Close marks the stream closed, failing its pending fetch retries, and
// releases the inner handle.
func (s *ResilientStream) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	fut := util.NewFuture[struct{}]()
	retry(ctx, s.client, s.client.management, fut, "close stream", func() error {
		return ctxErr(ctx)
	}, func() (struct{}, error) {
		return struct{}{}, s.inner.Close(ctx)
	})
	_, err := fut.Wait(ctx)
	return err
}

// halt reports why a call should stop retrying, or nil to proceed.
func (s *ResilientStream) halt(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStreamClosed
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// retry runs op on the pool, rescheduling failed attempts on the client's
// retry delay until one succeeds, halt reports the call dead, or the client
// closes.
func retry[T any](
	ctx context.Context,
	c *Resilient,
	p *pool,
	fut *util.Future[T],
	name string,
	halt func() error,
	op func() (T, error),
) {
	var attempt func()
	attempt = func() {
		if err := halt(); err != nil {
			fut.Fail(err)
			return
		}
		result, err := op()
		if err == nil {
			fut.Complete(result)
			return
		}
		log.Warnf(ctx, "failed to %s, retrying in %s: %s", name, c.delay, err)
		time.AfterFunc(c.delay, func() {
			select {
			case <-c.done:
				fut.Fail(ErrClientClosed)
				return
			default:
			}
			if !p.submit(attempt) {
				fut.Fail(ErrClientClosed)
			}
		})
	}
	if !p.submit(attempt) {
		fut.Fail(ErrClientClosed)
	}
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return nil
}
