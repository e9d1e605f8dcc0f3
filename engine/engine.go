package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/wkalt/strata/blockcache"
	"github.com/wkalt/strata/cache"
	"github.com/wkalt/strata/objects"
	"github.com/wkalt/strata/storage"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util"
	"github.com/wkalt/strata/wal"
)

/*
The engine ties the write and read paths of the store together. An append is
encoded, staged durably in the write-ahead log, and acknowledged in strict
offset order once the log confirms it, entering the in-memory log cache at
the same moment. When the active cache block reaches its byte bound it is
sealed and handed to the migration loop, which writes it to object storage
as one immutable object, records it in the object manifest, trims the log
behind it, and frees the block. Reads merge the migrated prefix out of
object storage with the cached tail.

Two engine-owned goroutines drive all of this. The coordination loop owns
the log cache, the confirmation queue head, and the processed counter; the
migration loop owns uploads and the trim ledger. Neither takes locks on the
structures it owns. Everything else reaches them through tasks and channels.
*/

////////////////////////////////////////////////////////////////////////////////

// WAL is the durability layer the engine stages appends in.
type WAL interface {
	Append(data []byte) (wal.AppendResult, error)
	Trim(ctx context.Context, offset uint64) error
}

// ReadResult is the outcome of a read: a contiguous run of batches covering
// the requested start offset. NextOffset is where a subsequent read should
// resume, and equals the requested start when nothing was found.
type ReadResult struct {
	Records    []stream.RecordBatch
	NextOffset uint64
	SizeBytes  int
}

// Stats is a snapshot of engine state.
type Stats struct {
	LogConfirmOffset       uint64 `json:"logConfirmOffset"`
	ProcessedConfirmOffset uint64 `json:"processedConfirmOffset"`
	CacheSizeBytes         int    `json:"cacheSizeBytes"`
	CacheBlocks            int    `json:"cacheBlocks"`
}

// Engine is the main interface to the engine package.
type Engine struct {
	wal     WAL
	cache   *cache.LogCache
	manager objects.Manager
	store   storage.Provider
	blocks  blockcache.BlockCache

	appendMu sync.Mutex
	queue    chan *request

	tasks     chan func()
	drainTask func()
	uploads   chan uploadTask

	// owned by the coordination loop
	head *request

	// owned by the migration loop
	ledger ledger

	logConfirm       atomic.Uint64
	processedConfirm atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// New returns a started engine over the supplied components. The engine
// appends to w and serves reads from c and blocks; migrated blocks are
// written to store and recorded in manager. The caller retains ownership of
// the component lifecycles.
func New(
	ctx context.Context,
	w WAL,
	c *cache.LogCache,
	manager objects.Manager,
	store storage.Provider,
	blocks blockcache.BlockCache,
	opts ...Option,
) *Engine {
	conf := config{
		queueSize:       DefaultQueueSize,
		uploadQueueSize: DefaultUploadQueueSize,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	e := &Engine{
		wal:     w,
		cache:   c,
		manager: manager,
		store:   store,
		blocks:  blocks,
		queue:   make(chan *request, conf.queueSize),
		tasks:   make(chan func(), 128),
		uploads: make(chan uploadTask, conf.uploadQueueSize),
		done:    make(chan struct{}),
	}
	e.drainTask = e.drain
	e.wg.Add(2)
	go e.loop()
	go e.uploadLoop(ctx)
	return e
}

// Append stages a batch in the log and enqueues it for confirmation. The
// returned ack resolves with the batch's log offset once the batch is
// durable and every earlier append has resolved. If the confirmation queue
// is full, Append blocks until space frees or ctx is canceled; cancellation
// fails the ack but does not withdraw the log write.
func (e *Engine) Append(ctx context.Context, record stream.RecordBatch) *Ack {
	ack := util.NewFuture[uint64]()
	if record.Count == 0 {
		ack.Fail(ErrEmptyBatch)
		return ack
	}
	flat := stream.Encode(record)
	e.appendMu.Lock()
	if e.closed.Load() {
		e.appendMu.Unlock()
		ack.Fail(ErrClosed)
		return ack
	}
	result, err := e.wal.Append(flat.Data)
	if err != nil {
		e.appendMu.Unlock()
		ack.Fail(fmt.Errorf("failed to stage batch: %w", err))
		return ack
	}
	req := &request{batch: flat, offset: result.Offset, ack: ack}
	select {
	case e.queue <- req:
		e.appendMu.Unlock()
	case <-ctx.Done():
		e.appendMu.Unlock()
		ack.Fail(fmt.Errorf("context error: %w", ctx.Err()))
		return ack
	case <-e.done:
		e.appendMu.Unlock()
		ack.Fail(ErrClosed)
		return ack
	}
	go e.watch(result, req)
	return ack
}

// Read returns the contiguous run of batches for the stream beginning at
// start, merging migrated data from object storage with the cached tail. A
// maxBytes value of zero or less means no byte budget; otherwise the run
// ends with the batch that reaches the budget.
func (e *Engine) Read(
	ctx context.Context, streamID uint64, start, end uint64, maxBytes int,
) (ReadResult, error) {
	if end <= start {
		return ReadResult{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, start, end)
	}
	maxBytes = util.When(maxBytes <= 0, math.MaxInt, maxBytes)
	var local []stream.FlatBatch
	if err := e.run(ctx, func() {
		local = e.cache.Get(streamID, start, end, maxBytes)
	}); err != nil {
		return ReadResult{}, err
	}
	if len(local) > 0 {
		result := ReadResult{Records: make([]stream.RecordBatch, 0, len(local))}
		for _, flat := range local {
			result.Records = append(result.Records, flat.Record())
			result.SizeBytes += flat.Size()
			result.NextOffset = flat.EndOffset()
		}
		return result, nil
	}
	remote, err := e.blocks.Read(ctx, streamID, start, end, maxBytes)
	if err != nil {
		return ReadResult{}, fmt.Errorf("failed to read migrated data: %w", err)
	}
	result := ReadResult{
		Records:    remote.Records,
		SizeBytes:  remote.SizeBytes,
		NextOffset: start,
	}
	if remote.EndOffset == 0 {
		return result, nil
	}
	result.NextOffset = remote.EndOffset
	if result.NextOffset < end && result.SizeBytes < maxBytes {
		var tail []stream.FlatBatch
		pos, budget := result.NextOffset, maxBytes-result.SizeBytes
		if err := e.run(ctx, func() {
			tail = e.cache.Get(streamID, pos, end, budget)
		}); err != nil {
			return ReadResult{}, err
		}
		for _, flat := range tail {
			result.Records = append(result.Records, flat.Record())
			result.SizeBytes += flat.Size()
			result.NextOffset = flat.EndOffset()
		}
	}
	return result, nil
}

// ForceUpload migrates the active cache block now if it holds data for the
// given stream, waiting for the migration to complete. If it does not, the
// call is a no-op.
func (e *Engine) ForceUpload(ctx context.Context, streamID uint64) error {
	var task *uploadTask
	if err := e.run(ctx, func() {
		block, ok := e.cache.ArchiveCurrentBlockIfContains(streamID)
		if !ok {
			return
		}
		t := uploadTask{block: block, done: make(chan error, 1)}
		e.submitUpload(t)
		task = &t
	}); err != nil {
		return err
	}
	if task == nil {
		return nil
	}
	select {
	case err := <-task.done:
		if err != nil {
			return fmt.Errorf("failed to migrate block: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context error: %w", ctx.Err())
	case <-e.done:
		return ErrClosed
	}
}

// Restore re-inserts a batch that is already durable in the log, advancing
// the confirmation counters past it without staging it again. It is the
// startup path for log replay and must complete before the engine serves
// appends.
func (e *Engine) Restore(ctx context.Context, logOffset uint64, data []byte) error {
	flat, n, err := stream.ParseFlat(data)
	if err != nil {
		return fmt.Errorf("failed to parse batch at log offset %d: %w", logOffset, err)
	}
	if n != len(data) {
		return fmt.Errorf("failed to parse batch at log offset %d: %w", logOffset, stream.ErrTrailingData)
	}
	return e.run(ctx, func() {
		if full := e.cache.Put(flat, logOffset); full {
			e.rollover()
		}
		advance(&e.logConfirm, logOffset)
		advance(&e.processedConfirm, logOffset)
	})
}

// Stats returns a snapshot of the engine's counters and cache occupancy.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := e.run(ctx, func() {
		stats.CacheSizeBytes = e.cache.Size()
		stats.CacheBlocks = e.cache.Blocks()
	}); err != nil {
		return Stats{}, err
	}
	stats.LogConfirmOffset = e.logConfirm.Load()
	stats.ProcessedConfirmOffset = e.processedConfirm.Load()
	return stats, nil
}

// Close stops the engine's loops. Unresolved appends fail with ErrClosed.
// Cached data that has not migrated stays in the log and is restored on the
// next start.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.appendMu.Lock()
		e.closed.Store(true)
		e.appendMu.Unlock()
		e.wg.Wait()
		if e.head != nil {
			e.head.ack.Fail(ErrClosed)
			e.head = nil
		}
		for {
			select {
			case req := <-e.queue:
				req.ack.Fail(ErrClosed)
			default:
				return
			}
		}
	})
	return nil
}

////////////////////////////////////////////////////////////////////////////////

func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.done:
			return
		}
	}
}

// run executes fn on the coordination loop and waits for it to finish.
func (e *Engine) run(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	task := func() {
		fn()
		close(ran)
	}
	select {
	case e.tasks <- task:
	case <-ctx.Done():
		return fmt.Errorf("context error: %w", ctx.Err())
	case <-e.done:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context error: %w", ctx.Err())
	case <-e.done:
		return ErrClosed
	}
}

// schedule queues fn on the coordination loop without waiting for it.
func (e *Engine) schedule(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.done:
	}
}

// watch awaits log durability for one staged append, then schedules a
// confirmation drain.
func (e *Engine) watch(result wal.AppendResult, req *request) {
	if err := <-result.Done; err != nil {
		req.err = fmt.Errorf("failed to persist batch: %w", err)
		req.failed.Store(true)
	} else {
		advance(&e.logConfirm, req.offset)
	}
	e.schedule(e.drainTask)
}

// drain resolves confirmation queue heads in strict queue order: failed
// heads fail immediately, confirmed heads enter the cache and then resolve,
// and the first head past the confirmed offset ends the pass.
func (e *Engine) drain() {
	w := e.logConfirm.Load()
	for {
		req := e.head
		e.head = nil
		if req == nil {
			select {
			case req = <-e.queue:
			default:
			}
		}
		if req == nil {
			break
		}
		if req.failed.Load() {
			req.ack.Fail(req.err)
			continue
		}
		if req.offset > w {
			e.head = req
			break
		}
		full := e.cache.Put(req.batch, req.offset)
		req.ack.Complete(req.offset)
		if full {
			e.rollover()
		}
	}
	e.processedConfirm.Store(w)
}

// rollover seals the active cache block and hands it to the migration loop.
func (e *Engine) rollover() {
	block := e.cache.ArchiveCurrentBlock()
	e.submitUpload(uploadTask{block: block})
}

func (e *Engine) submitUpload(task uploadTask) {
	select {
	case e.uploads <- task:
	case <-e.done:
	}
}

// advance raises the counter to offset unless it is already past it.
func advance(counter *atomic.Uint64, offset uint64) {
	for {
		current := counter.Load()
		if offset <= current || counter.CompareAndSwap(current, offset) {
			return
		}
	}
}
