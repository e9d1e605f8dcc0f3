package blockcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/wkalt/strata/objects"
	"github.com/wkalt/strata/storage"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util"
	"golang.org/x/sync/errgroup"
)

/*
The block cache is the read path for data that has migrated out of the log
cache into object storage. A read resolves the requested offset window
against the object manifest, fetches the backing object sections in
parallel, and reassembles the contained batches into a single contiguous
run. Fetched sections are retained in a byte-bounded LRU so that repeated
reads over the same migrated region do not return to storage.

Reads follow the same coverage rules as the log cache: the result is empty
unless some batch covers the start offset, and from there the run extends
until a gap, the end of the window, or the byte budget.
*/

////////////////////////////////////////////////////////////////////////////////

// ReadResult is a contiguous run of decoded batches from object storage.
// EndOffset is the exclusive end of the run, or zero if no batch covered the
// requested start.
type ReadResult struct {
	Records   []stream.RecordBatch
	EndOffset uint64
	SizeBytes int
}

// BlockCache is the interface the engine's read path consumes.
type BlockCache interface {
	Read(ctx context.Context, streamID uint64, start, end uint64, maxBytes int) (ReadResult, error)
}

// ObjectReader reads migrated stream data back out of object storage.
type ObjectReader struct {
	manager  objects.Manager
	store    storage.Provider
	sections *util.LRU[string, []byte]

	concurrency int
}

// NewObjectReader constructs an ObjectReader over the supplied manifest and
// storage provider.
func NewObjectReader(manager objects.Manager, store storage.Provider, opts ...Option) *ObjectReader {
	conf := config{
		cacheSizeBytes: 128 * megabyte,
		concurrency:    8,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	return &ObjectReader{
		manager:     manager,
		store:       store,
		sections:    util.NewLRU[string, []byte](uint64(conf.cacheSizeBytes)),
		concurrency: conf.concurrency,
	}
}

// Read returns the contiguous run of migrated batches for the stream
// beginning at start. A maxBytes value of zero or less means no byte budget.
func (r *ObjectReader) Read(
	ctx context.Context, streamID uint64, start, end uint64, maxBytes int,
) (ReadResult, error) {
	ranges, err := r.manager.Lookup(ctx, streamID, start, end)
	if err != nil {
		return ReadResult{}, fmt.Errorf("failed to look up stream ranges: %w", err)
	}
	result := ReadResult{Records: []stream.RecordBatch{}}
	if len(ranges) == 0 {
		return result, nil
	}
	sections := make([][]byte, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, rng := range ranges {
		g.Go(func() error {
			section, err := r.section(gctx, rng)
			if err != nil {
				return err
			}
			sections[i] = section
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReadResult{}, fmt.Errorf("failed to fetch object sections: %w", err)
	}
	pos := start
	count := 0
	for i, rng := range ranges {
		if rng.EndOffset <= pos {
			continue
		}
		if rng.StartOffset > pos {
			break
		}
		batches, err := stream.ScanFlat(sections[i])
		if err != nil {
			return ReadResult{}, fmt.Errorf("failed to scan section of %s: %w", rng.Key, err)
		}
		for _, batch := range batches {
			if batch.StreamID != streamID || batch.EndOffset() <= pos {
				continue
			}
			if batch.BaseOffset > pos {
				return sealed(result, pos), nil
			}
			result.Records = append(result.Records, batch.Record())
			result.SizeBytes += batch.Size()
			count += batch.Size()
			pos = batch.EndOffset()
			if pos >= end || (maxBytes > 0 && count >= maxBytes) {
				return sealed(result, pos), nil
			}
		}
	}
	return sealed(result, pos), nil
}

// section returns the bytes of one stream range, from cache if possible.
// Sections too large for the cache are fetched but not retained.
func (r *ObjectReader) section(ctx context.Context, rng objects.ObjectRange) ([]byte, error) {
	key := fmt.Sprintf("%s:%d:%d", rng.Key, rng.Position, rng.Length)
	if data, ok := r.sections.Get(key); ok {
		return data, nil
	}
	data, err := r.store.GetRange(ctx, rng.Key, rng.Position, rng.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch section of %s: %w", rng.Key, err)
	}
	if err := r.sections.Put(key, data, uint64(len(data))); err != nil && !errors.Is(err, util.ErrValueTooLarge) {
		return nil, fmt.Errorf("failed to cache section of %s: %w", rng.Key, err)
	}
	return data, nil
}

func sealed(result ReadResult, pos uint64) ReadResult {
	if len(result.Records) > 0 {
		result.EndOffset = pos
	}
	return result
}
