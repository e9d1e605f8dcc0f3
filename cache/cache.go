package cache

import (
	"sort"

	"github.com/wkalt/strata/stream"
	"golang.org/x/exp/maps"
)

/*
The log cache holds recently appended record batches in memory, organized into
offset-bounded blocks. Exactly one block is active at a time; batches land in
it in WAL offset order until it reaches the block byte bound, at which point
the engine archives it and opens a fresh one. Archived blocks stay resident,
still serving reads, until their data is committed to object storage and the
engine frees them.

The cache does no locking of its own. All mutation and lookup happens on the
engine's coordination goroutine.
*/

////////////////////////////////////////////////////////////////////////////////

// LogCache buffers appended batches across one active and any number of
// archived blocks.
type LogCache struct {
	config   *config
	nextID   uint64
	active   *Block
	archived map[uint64]*Block
	size     int
}

// NewLogCache constructs a log cache.
func NewLogCache(opts ...Option) *LogCache {
	conf := &config{
		blockSize: 512 * megabyte,
	}
	for _, opt := range opts {
		opt(conf)
	}
	return &LogCache{
		config:   conf,
		active:   newBlock(1),
		nextID:   2,
		archived: map[uint64]*Block{},
	}
}

// Put appends a batch to the active block under its WAL offset, reporting
// whether the block has reached the byte bound and should be archived.
func (c *LogCache) Put(batch stream.FlatBatch, walOffset uint64) bool {
	c.active.put(batch, walOffset)
	c.size += batch.Size()
	return c.active.size >= c.config.blockSize
}

// Get returns the contiguous run of cached batches for the stream beginning
// at start, drawing from archived blocks and the active block in insertion
// order. The result is empty unless some batch covers start. When start is
// covered, at least one batch is returned; past that the run stops at a gap,
// the end offset, or the byte budget.
func (c *LogCache) Get(streamID uint64, start uint64, end uint64, maxBytes int) []stream.FlatBatch {
	result := []stream.FlatBatch{}
	pos := start
	count := 0
	for _, block := range c.ordered() {
		for _, batch := range block.Batches(streamID) {
			if batch.EndOffset() <= pos {
				continue
			}
			if batch.BaseOffset > pos {
				return result
			}
			result = append(result, batch)
			count += batch.Size()
			pos = batch.EndOffset()
			if pos >= end || count >= maxBytes {
				return result
			}
		}
	}
	return result
}

// ArchiveCurrentBlock seals the active block and opens a fresh one, returning
// the sealed block for upload.
func (c *LogCache) ArchiveCurrentBlock() *Block {
	block := c.active
	c.archived[block.id] = block
	c.active = newBlock(c.nextID)
	c.nextID++
	return block
}

// ArchiveCurrentBlockIfContains archives the active block only if it holds
// data for the given stream.
func (c *LogCache) ArchiveCurrentBlockIfContains(streamID uint64) (*Block, bool) {
	if !c.active.Contains(streamID) {
		return nil, false
	}
	return c.ArchiveCurrentBlock(), true
}

// Free drops an archived block from the cache.
func (c *LogCache) Free(blockID uint64) {
	block, ok := c.archived[blockID]
	if !ok {
		return
	}
	delete(c.archived, blockID)
	c.size -= block.size
}

// Size returns the total byte size of cached batches across all blocks.
func (c *LogCache) Size() int {
	return c.size
}

// Blocks returns the number of resident blocks, including the active one.
func (c *LogCache) Blocks() int {
	return len(c.archived) + 1
}

// ordered returns the resident blocks in id order, active last.
func (c *LogCache) ordered() []*Block {
	ids := maps.Keys(c.archived)
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	blocks := make([]*Block, 0, len(ids)+1)
	for _, id := range ids {
		blocks = append(blocks, c.archived[id])
	}
	return append(blocks, c.active)
}
