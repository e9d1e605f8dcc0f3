package engine_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/strata/blockcache"
	"github.com/wkalt/strata/cache"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/objects"
	"github.com/wkalt/strata/storage"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/wal"
)

func TestAppendAcksResolveInOffsetOrder(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(false)
	e := newEngine(t, w, objects.NewMemManager(), storage.NewMemStore(), 0)

	a1 := e.Append(ctx, batch(1, 0, 10, "one"))
	a2 := e.Append(ctx, batch(1, 10, 10, "two"))
	a3 := e.Append(ctx, batch(1, 20, 10, "three"))
	assertPending(t, a1)

	// a confirm for the last staged offset covers the whole log prefix, and
	// the acks resolve in offset order even though the confirm arrived out
	// of order
	w.resolve(t, 3, nil)
	require.Equal(t, uint64(3), await(t, a3))
	assertResolved(t, a1)
	assertResolved(t, a2)
	require.Equal(t, uint64(1), await(t, a1))
	require.Equal(t, uint64(2), await(t, a2))

	// stale confirms for offsets below the watermark are no-ops
	w.resolve(t, 1, nil)
	w.resolve(t, 2, nil)
}

func TestConfirmCoversLogPrefix(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(false)
	e := newEngine(t, w, objects.NewMemManager(), storage.NewMemStore(), 0)

	a1 := e.Append(ctx, batch(1, 0, 10, "one"))
	a2 := e.Append(ctx, batch(1, 10, 10, "two"))
	a3 := e.Append(ctx, batch(1, 20, 10, "three"))

	// confirming the middle offset releases it and everything before it,
	// but nothing after
	w.resolve(t, 2, nil)
	require.Equal(t, uint64(1), await(t, a1))
	require.Equal(t, uint64(2), await(t, a2))
	assertPending(t, a3)

	w.resolve(t, 3, nil)
	require.Equal(t, uint64(3), await(t, a3))
	w.resolve(t, 1, nil)
}

func TestFailedAppendFailsAckWithoutCaching(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(false)
	e := newEngine(t, w, objects.NewMemManager(), storage.NewMemStore(), 0)

	a1 := e.Append(ctx, batch(1, 0, 10, "lost"))
	a2 := e.Append(ctx, batch(1, 10, 10, "kept"))

	// the failed head pops even though nothing is confirmed yet
	w.resolve(t, 1, errors.New("disk failure"))
	err := awaitErr(t, a1)
	require.ErrorContains(t, err, "disk failure")

	w.resolve(t, 2, nil)
	require.Equal(t, uint64(2), await(t, a2))

	result, err := e.Read(ctx, 1, 0, 10, 0)
	require.NoError(t, err)
	require.Empty(t, result.Records)

	result, err = e.Read(ctx, 1, 10, 20, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"kept"}, payloads(result))
}

func TestReadServesCachedTail(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, newTestWAL(true), objects.NewMemManager(), storage.NewMemStore(), 0)

	await(t, e.Append(ctx, batch(1, 100, 50, "first")))
	await(t, e.Append(ctx, batch(1, 150, 50, "second")))

	cases := []struct {
		assertion  string
		start      uint64
		end        uint64
		payloads   []string
		nextOffset uint64
	}{
		{"full window", 100, 200, []string{"first", "second"}, 200},
		{"start inside first batch", 120, 200, []string{"first", "second"}, 200},
		{"second batch only", 150, 200, []string{"second"}, 200},
		{"end bounds the run", 100, 150, []string{"first"}, 150},
		{"start not covered", 90, 200, nil, 90},
		{"window past the data", 200, 300, nil, 200},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			result, err := e.Read(ctx, 1, c.start, c.end, 0)
			require.NoError(t, err)
			require.Equal(t, c.payloads, payloads(result))
			require.Equal(t, c.nextOffset, result.NextOffset)
		})
	}
}

func TestReadMergesMigratedAndCachedData(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(true)
	manager := objects.NewMemManager()
	store := storage.NewMemStore()
	e := newEngine(t, w, manager, store, 0)

	await(t, e.Append(ctx, batch(1, 100, 50, "migrated")))
	require.NoError(t, e.ForceUpload(ctx, 1))
	awaitEmptyCache(t, e)

	await(t, e.Append(ctx, batch(1, 150, 50, "cached")))

	t.Run("read spanning the migration boundary has no gap or overlap", func(t *testing.T) {
		result, err := e.Read(ctx, 1, 100, 200, 0)
		require.NoError(t, err)
		require.Equal(t, []string{"migrated", "cached"}, payloads(result))
		require.Equal(t, uint64(200), result.NextOffset)
	})
	t.Run("read of the migrated prefix only", func(t *testing.T) {
		result, err := e.Read(ctx, 1, 100, 150, 0)
		require.NoError(t, err)
		require.Equal(t, []string{"migrated"}, payloads(result))
	})
	t.Run("read of the cached tail only", func(t *testing.T) {
		result, err := e.Read(ctx, 1, 150, 200, 0)
		require.NoError(t, err)
		require.Equal(t, []string{"cached"}, payloads(result))
	})
}

func TestReadByteBudgetSpansTiers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, newTestWAL(true), objects.NewMemManager(), storage.NewMemStore(), 0)

	remote := batch(1, 0, 10, "aaaa")
	await(t, e.Append(ctx, remote))
	require.NoError(t, e.ForceUpload(ctx, 1))
	awaitEmptyCache(t, e)
	await(t, e.Append(ctx, batch(1, 10, 10, "bbbb")))

	result, err := e.Read(ctx, 1, 0, 20, remote.Size())
	require.NoError(t, err)
	require.Equal(t, []string{"aaaa"}, payloads(result), "budget exhausted by the migrated batch")

	result, err = e.Read(ctx, 1, 0, 20, remote.Size()+1)
	require.NoError(t, err)
	require.Equal(t, []string{"aaaa", "bbbb"}, payloads(result), "remaining budget admits the cached batch")
}

func TestRolloverMigratesInBackground(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(true)
	manager := objects.NewMemManager()
	store := storage.NewMemStore()
	size := batch(1, 0, 10, "0123456789").Size()
	e := newEngine(t, w, manager, store, 2*size)

	await(t, e.Append(ctx, batch(1, 0, 10, "0123456789")))
	await(t, e.Append(ctx, batch(1, 10, 10, "abcdefghij")))

	require.Eventually(t, func() bool {
		ranges, err := manager.Lookup(ctx, 1, 0, 20)
		return err == nil && len(ranges) == 1
	}, 5*time.Second, 10*time.Millisecond, "sealed block should migrate")

	require.Eventually(t, func() bool {
		return w.trimOffset() == 2
	}, 5*time.Second, 10*time.Millisecond, "log should trim behind the migrated block")

	awaitEmptyCache(t, e)

	await(t, e.Append(ctx, batch(1, 20, 10, "tail")))
	result, err := e.Read(ctx, 1, 0, 30, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"0123456789", "abcdefghij", "tail"}, payloads(result))
}

func TestForceUploadIsNoopForUncachedStream(t *testing.T) {
	ctx := context.Background()
	manager := &countingManager{Manager: objects.NewMemManager()}
	e := newEngine(t, newTestWAL(true), manager, storage.NewMemStore(), 0)

	require.NoError(t, e.ForceUpload(ctx, 77))
	require.Zero(t, manager.prepares.Load())

	await(t, e.Append(ctx, batch(1, 0, 10, "data")))
	require.NoError(t, e.ForceUpload(ctx, 77))
	require.Zero(t, manager.prepares.Load())

	require.NoError(t, e.ForceUpload(ctx, 1))
	require.Equal(t, int64(1), manager.prepares.Load())
}

func TestUploadFailurePreservesCacheAndLog(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(true)
	manager := objects.NewMemManager()
	store := &failingStore{Provider: storage.NewMemStore()}
	store.failing.Store(true)
	e := newEngine(t, w, manager, store, 0)

	await(t, e.Append(ctx, batch(1, 0, 10, "stranded")))
	err := e.ForceUpload(ctx, 1)
	require.ErrorContains(t, err, "storage unavailable")

	// the block stays cached, the log keeps its data, and no object is
	// visible
	result, err := e.Read(ctx, 1, 0, 10, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"stranded"}, payloads(result))
	require.Zero(t, w.trimOffset())
	ranges, err := manager.Lookup(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.Empty(t, ranges)

	// a later successful migration cannot trim past the stranded block
	store.failing.Store(false)
	await(t, e.Append(ctx, batch(1, 10, 10, "migrated")))
	require.NoError(t, e.ForceUpload(ctx, 1))
	require.Zero(t, w.trimOffset())

	result, err = e.Read(ctx, 1, 0, 10, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"stranded"}, payloads(result))
	result, err = e.Read(ctx, 1, 10, 20, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"migrated"}, payloads(result))
}

func TestAppendBackpressureCancellation(t *testing.T) {
	w := newTestWAL(false)
	e := newEngine(t, w, objects.NewMemManager(), storage.NewMemStore(), 0,
		engine.WithQueueSize(1))

	a1 := e.Append(context.Background(), batch(1, 0, 10, "first"))

	cctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	a2 := e.Append(cctx, batch(1, 10, 10, "second"))
	err := awaitErr(t, a2)
	require.ErrorIs(t, err, context.Canceled)

	// the first append is unaffected
	w.resolve(t, 1, nil)
	require.Equal(t, uint64(1), await(t, a1))
}

func TestCloseFailsPendingAppends(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(false)
	manager := objects.NewMemManager()
	store := storage.NewMemStore()
	e := engine.New(ctx, w, cache.NewLogCache(), manager, store,
		blockcache.NewObjectReader(manager, store))

	a1 := e.Append(ctx, batch(1, 0, 10, "one"))
	a2 := e.Append(ctx, batch(1, 10, 10, "two"))

	require.NoError(t, e.Close())
	require.ErrorIs(t, awaitErr(t, a1), engine.ErrClosed)
	require.ErrorIs(t, awaitErr(t, a2), engine.ErrClosed)

	require.ErrorIs(t, awaitErr(t, e.Append(ctx, batch(1, 20, 10, "late"))), engine.ErrClosed)
	_, err := e.Read(ctx, 1, 0, 10, 0)
	require.ErrorIs(t, err, engine.ErrClosed)
	require.ErrorIs(t, e.ForceUpload(ctx, 1), engine.ErrClosed)
	_, err = e.Stats(ctx)
	require.ErrorIs(t, err, engine.ErrClosed)

	require.NoError(t, e.Close(), "close is idempotent")
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, newTestWAL(true), objects.NewMemManager(), storage.NewMemStore(), 0)

	require.NoError(t, e.Restore(ctx, 1, stream.Encode(batch(1, 100, 50, "first")).Data))
	require.NoError(t, e.Restore(ctx, 2, stream.Encode(batch(1, 150, 50, "second")).Data))

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), stats.LogConfirmOffset)
	require.Equal(t, uint64(2), stats.ProcessedConfirmOffset)

	result, err := e.Read(ctx, 1, 100, 200, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, payloads(result))

	require.Error(t, e.Restore(ctx, 3, []byte("not a batch")))
}

func TestStatsCounters(t *testing.T) {
	ctx := context.Background()
	w := newTestWAL(false)
	e := newEngine(t, w, objects.NewMemManager(), storage.NewMemStore(), 0)

	b1 := batch(1, 0, 10, "one")
	b2 := batch(1, 10, 10, "two")
	a1 := e.Append(ctx, b1)
	a2 := e.Append(ctx, b2)
	e.Append(ctx, batch(1, 20, 10, "three"))

	w.resolve(t, 1, nil)
	w.resolve(t, 2, nil)
	await(t, a1)
	await(t, a2)

	require.Eventually(t, func() bool {
		stats, err := e.Stats(ctx)
		return err == nil &&
			stats.LogConfirmOffset == 2 &&
			stats.ProcessedConfirmOffset == 2 &&
			stats.CacheSizeBytes == b1.Size()+b2.Size() &&
			stats.CacheBlocks == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, newTestWAL(true), objects.NewMemManager(), storage.NewMemStore(), 0)

	streams := 4
	perStream := 25
	acks := make([]*engine.Ack, streams*perStream)
	wg := sync.WaitGroup{}
	for streamID := 0; streamID < streams; streamID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perStream; i++ {
				acks[streamID*perStream+i] = e.Append(
					ctx, batch(uint64(streamID+1), uint64(i*10), 10, "x"),
				)
			}
		}()
	}
	wg.Wait()
	for _, ack := range acks {
		await(t, ack)
	}

	for streamID := 1; streamID <= streams; streamID++ {
		result, err := e.Read(ctx, uint64(streamID), 0, uint64(perStream*10), 0)
		require.NoError(t, err)
		require.Len(t, result.Records, perStream)
		for i, record := range result.Records {
			require.Equal(t, uint64(i*10), record.BaseOffset)
		}
	}
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, newTestWAL(true), objects.NewMemManager(), storage.NewMemStore(), 0)

	require.ErrorIs(t, awaitErr(t, e.Append(ctx, batch(1, 0, 0, "no records"))), engine.ErrEmptyBatch)

	_, err := e.Read(ctx, 1, 10, 10, 0)
	require.ErrorIs(t, err, engine.ErrInvalidWindow)
	_, err = e.Read(ctx, 1, 10, 5, 0)
	require.ErrorIs(t, err, engine.ErrInvalidWindow)
}

////////////////////////////////////////////////////////////////////////////////

// testWAL hands out sequential offsets and lets the test decide when each
// record becomes durable. With auto set, records are durable on append.
type testWAL struct {
	mtx     sync.Mutex
	auto    bool
	next    uint64
	pending map[uint64]chan error
	trimmed uint64
}

func newTestWAL(auto bool) *testWAL {
	return &testWAL{auto: auto, next: 1, pending: map[uint64]chan error{}}
}

func (w *testWAL) Append(data []byte) (wal.AppendResult, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	offset := w.next
	w.next++
	done := make(chan error, 1)
	if w.auto {
		done <- nil
	} else {
		w.pending[offset] = done
	}
	return wal.AppendResult{Offset: offset, Done: done}, nil
}

func (w *testWAL) Trim(_ context.Context, offset uint64) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if offset > w.trimmed {
		w.trimmed = offset
	}
	return nil
}

func (w *testWAL) resolve(t *testing.T, offset uint64, err error) {
	t.Helper()
	w.mtx.Lock()
	done, ok := w.pending[offset]
	delete(w.pending, offset)
	w.mtx.Unlock()
	require.True(t, ok, "offset %d has no pending append", offset)
	done <- err
}

func (w *testWAL) trimOffset() uint64 {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.trimmed
}

type countingManager struct {
	objects.Manager
	prepares atomic.Int64
}

func (m *countingManager) Prepare(ctx context.Context) (objects.Prepared, error) {
	m.prepares.Add(1)
	return m.Manager.Prepare(ctx)
}

type failingStore struct {
	storage.Provider
	failing atomic.Bool
}

func (s *failingStore) Put(ctx context.Context, id string, r io.Reader, size int64) error {
	if s.failing.Load() {
		return errors.New("storage unavailable")
	}
	return s.Provider.Put(ctx, id, r, size)
}

func newEngine(
	t *testing.T,
	w engine.WAL,
	manager objects.Manager,
	store storage.Provider,
	blockSize int,
	opts ...engine.Option,
) *engine.Engine {
	t.Helper()
	copts := []cache.Option{}
	if blockSize > 0 {
		copts = append(copts, cache.WithBlockSize(blockSize))
	}
	e := engine.New(
		context.Background(),
		w,
		cache.NewLogCache(copts...),
		manager,
		store,
		blockcache.NewObjectReader(manager, store),
		opts...,
	)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func batch(streamID uint64, base uint64, count uint32, payload string) stream.RecordBatch {
	return stream.RecordBatch{
		StreamID:   streamID,
		BaseOffset: base,
		Count:      count,
		Payload:    []byte(payload),
	}
}

func await(t *testing.T, ack *engine.Ack) uint64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	offset, err := ack.Wait(ctx)
	require.NoError(t, err)
	return offset
}

func awaitErr(t *testing.T, ack *engine.Ack) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := ack.Wait(ctx)
	require.Error(t, err)
	return err
}

func assertPending(t *testing.T, ack *engine.Ack) {
	t.Helper()
	select {
	case <-ack.Done():
		t.Fatal("ack resolved early")
	case <-time.After(50 * time.Millisecond):
	}
}

func assertResolved(t *testing.T, ack *engine.Ack) {
	t.Helper()
	select {
	case <-ack.Done():
	default:
		t.Fatal("ack should have resolved")
	}
}

func awaitEmptyCache(t *testing.T, e *engine.Engine) {
	t.Helper()
	require.Eventually(t, func() bool {
		stats, err := e.Stats(context.Background())
		return err == nil && stats.CacheSizeBytes == 0
	}, 5*time.Second, 10*time.Millisecond, "migrated blocks should be freed")
}

func payloads(result engine.ReadResult) []string {
	if len(result.Records) == 0 {
		return nil
	}
	out := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		out = append(out, string(record.Payload))
	}
	return out
}
