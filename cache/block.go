package cache

import (
	"fmt"

	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util"
)

/*
A Block is one generation of cached data: a mapping from stream to the record
batches appended while it was active, in WAL offset order. Blocks are mutable
only while active; once archived they are immutable, serving reads until the
engine frees them.
*/

////////////////////////////////////////////////////////////////////////////////

// Block is an offset-bounded grouping of cached record batches.
type Block struct {
	id      uint64
	streams map[uint64][]stream.FlatBatch
	size    int
	minWAL  uint64
	maxWAL  uint64
}

func newBlock(id uint64) *Block {
	return &Block{
		id:      id,
		streams: map[uint64][]stream.FlatBatch{},
	}
}

// ID returns the block's identifier. Identifiers are assigned monotonically.
func (b *Block) ID() uint64 {
	return b.id
}

// Size returns the total byte size of the block's batches.
func (b *Block) Size() int {
	return b.size
}

// MinWALOffset returns the lowest WAL offset of the block's records, or zero
// if the block is empty.
func (b *Block) MinWALOffset() uint64 {
	return b.minWAL
}

// MaxWALOffset returns the highest WAL offset of the block's records, or zero
// if the block is empty.
func (b *Block) MaxWALOffset() uint64 {
	return b.maxWAL
}

// Empty reports whether the block holds no batches.
func (b *Block) Empty() bool {
	return len(b.streams) == 0
}

// Contains reports whether the block holds any batches for the stream.
func (b *Block) Contains(streamID uint64) bool {
	_, ok := b.streams[streamID]
	return ok
}

// Streams returns the stream IDs present in the block, ascending.
func (b *Block) Streams() []uint64 {
	return util.Okeys(b.streams)
}

// Batches returns the block's batches for a stream, in base offset order.
func (b *Block) Batches(streamID uint64) []stream.FlatBatch {
	return b.streams[streamID]
}

func (b *Block) put(batch stream.FlatBatch, walOffset uint64) {
	b.streams[batch.StreamID] = append(b.streams[batch.StreamID], batch)
	b.size += batch.Size()
	if b.minWAL == 0 || walOffset < b.minWAL {
		b.minWAL = walOffset
	}
	if walOffset > b.maxWAL {
		b.maxWAL = walOffset
	}
}

func (b *Block) String() string {
	return fmt.Sprintf("block %d (%s, %d streams)", b.id, util.HumanBytes(uint64(b.size)), len(b.streams))
}
