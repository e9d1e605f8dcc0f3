package stream

import (
	"hash/crc32"

	"github.com/wkalt/strata/util"
)

/*
Codec for the flat batch encoding. Encoding is infallible; decoding validates
the magic, the framed lengths, and the trailing CRC before any field is
trusted.
*/

////////////////////////////////////////////////////////////////////////////////

const flatMagic = uint8(0x53)

const (
	headerLen    = 1 + 8 + 8 + 4 + 4
	flatOverhead = headerLen + 4
)

// Encode encodes a record batch into its flat form.
func Encode(b RecordBatch) FlatBatch {
	buf := make([]byte, flatOverhead+len(b.Payload))
	offset := util.U8(buf, flatMagic)
	offset += util.U64(buf[offset:], b.StreamID)
	offset += util.U64(buf[offset:], b.BaseOffset)
	offset += util.U32(buf[offset:], b.Count)
	offset += util.U32(buf[offset:], uint32(len(b.Payload)))
	offset += copy(buf[offset:], b.Payload)
	util.U32(buf[offset:], crc32.ChecksumIEEE(buf[:offset]))
	return FlatBatch{
		StreamID:   b.StreamID,
		BaseOffset: b.BaseOffset,
		Count:      b.Count,
		Data:       buf,
	}
}

// ParseFlat parses a single flat batch from the front of data, returning the
// batch and the number of bytes consumed.
func ParseFlat(data []byte) (FlatBatch, int, error) {
	if len(data) < headerLen {
		return FlatBatch{}, 0, ErrShortBuffer
	}
	var offset int
	var magic uint8
	var streamID, baseOffset uint64
	var count, length uint32
	offset += util.ReadU8(data[offset:], &magic)
	if magic != flatMagic {
		return FlatBatch{}, 0, ErrBadMagic
	}
	offset += util.ReadU64(data[offset:], &streamID)
	offset += util.ReadU64(data[offset:], &baseOffset)
	offset += util.ReadU32(data[offset:], &count)
	offset += util.ReadU32(data[offset:], &length)
	end := offset + int(length) + 4
	if len(data) < end {
		return FlatBatch{}, 0, ErrShortBuffer
	}
	var crc uint32
	util.ReadU32(data[end-4:], &crc)
	computed := crc32.ChecksumIEEE(data[:end-4])
	if crc != computed {
		return FlatBatch{}, 0, CRCMismatchError{crc, computed}
	}
	return FlatBatch{
		StreamID:   streamID,
		BaseOffset: baseOffset,
		Count:      count,
		Data:       data[:end],
	}, end, nil
}

// DecodeFlat parses and decodes a single flat batch occupying all of data.
func DecodeFlat(data []byte) (RecordBatch, error) {
	flat, n, err := ParseFlat(data)
	if err != nil {
		return RecordBatch{}, err
	}
	if n != len(data) {
		return RecordBatch{}, ErrTrailingData
	}
	return flat.Record(), nil
}

// ScanFlat parses a buffer of concatenated flat batches.
func ScanFlat(data []byte) ([]FlatBatch, error) {
	var batches []FlatBatch
	for len(data) > 0 {
		flat, n, err := ParseFlat(data)
		if err != nil {
			return nil, err
		}
		batches = append(batches, flat)
		data = data[n:]
	}
	return batches, nil
}
