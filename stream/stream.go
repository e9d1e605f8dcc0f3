package stream

import (
	"fmt"
)

/*
stream defines the record batch model for the storage engine. A record batch
is the unit of append, caching, and upload: a contiguous run of records on a
single stream, identified by the stream ID and the offset range it covers. The
engine does not interpret batch payloads.

Batches cross the durability boundary in their "flat" encoding, which is the
byte layout used both for write-ahead log record bodies and for the contents
of uploaded storage objects:

    Magic: 1 byte (0x53)
    StreamID: 8 bytes
    BaseOffset: 8 bytes
    Count: 4 bytes
    Length: 4 bytes
    Payload: [Length]byte
    CRC32: 4 bytes

The CRC is calculated over all preceding bytes of the batch, including the
magic.
*/

////////////////////////////////////////////////////////////////////////////////

// RecordBatch is a decoded batch of records on a single stream.
type RecordBatch struct {
	StreamID   uint64
	BaseOffset uint64
	Count      uint32
	Payload    []byte
}

// EndOffset returns the exclusive end of the offset range the batch covers.
func (b RecordBatch) EndOffset() uint64 {
	return b.BaseOffset + uint64(b.Count)
}

// Size returns the size of the batch in its flat encoding.
func (b RecordBatch) Size() int {
	return flatOverhead + len(b.Payload)
}

func (b RecordBatch) String() string {
	return fmt.Sprintf("%d:[%d,%d)", b.StreamID, b.BaseOffset, b.EndOffset())
}

// FlatBatch is an encoded batch together with the header fields needed to
// place it without reparsing. Data holds the full flat encoding including
// magic and CRC.
type FlatBatch struct {
	StreamID   uint64
	BaseOffset uint64
	Count      uint32
	Data       []byte
}

// EndOffset returns the exclusive end of the offset range the batch covers.
func (f FlatBatch) EndOffset() uint64 {
	return f.BaseOffset + uint64(f.Count)
}

// Size returns the encoded size of the batch in bytes.
func (f FlatBatch) Size() int {
	return len(f.Data)
}

// Record returns the decoded form of the batch. The payload aliases the
// encoded data rather than copying it.
func (f FlatBatch) Record() RecordBatch {
	return RecordBatch{
		StreamID:   f.StreamID,
		BaseOffset: f.BaseOffset,
		Count:      f.Count,
		Payload:    f.Data[headerLen : len(f.Data)-4],
	}
}

func (f FlatBatch) String() string {
	return fmt.Sprintf("%d:[%d,%d)", f.StreamID, f.BaseOffset, f.EndOffset())
}
