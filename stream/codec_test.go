package stream_test

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util/testutils"
)

func TestEncode(t *testing.T) {
	batch := stream.RecordBatch{
		StreamID:   42,
		BaseOffset: 100,
		Count:      10,
		Payload:    []byte("hello"),
	}
	flat := stream.Encode(batch)
	require.Equal(t, uint64(42), flat.StreamID)
	require.Equal(t, uint64(100), flat.BaseOffset)
	require.Equal(t, uint32(10), flat.Count)
	require.Equal(t, uint64(110), flat.EndOffset())
	require.Equal(t, batch.Size(), flat.Size())

	expected := testutils.Flatten(
		testutils.U8b(0x53),
		testutils.U64b(42),
		testutils.U64b(100),
		testutils.U32b(10),
		testutils.U32b(5),
		[]byte("hello"),
	)
	expected = append(expected, testutils.U32b(crc32.ChecksumIEEE(expected))...)
	require.Equal(t, expected, flat.Data)
}

func TestDecodeFlat(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		batch := stream.RecordBatch{
			StreamID:   1,
			BaseOffset: 50,
			Count:      3,
			Payload:    []byte("payload"),
		}
		decoded, err := stream.DecodeFlat(stream.Encode(batch).Data)
		require.NoError(t, err)
		require.Equal(t, batch, decoded)
	})
	t.Run("empty payload", func(t *testing.T) {
		batch := stream.RecordBatch{StreamID: 1, BaseOffset: 0, Count: 1, Payload: []byte{}}
		decoded, err := stream.DecodeFlat(stream.Encode(batch).Data)
		require.NoError(t, err)
		require.Equal(t, uint64(1), decoded.EndOffset())
		require.Empty(t, decoded.Payload)
	})
	t.Run("short buffer", func(t *testing.T) {
		data := stream.Encode(stream.RecordBatch{StreamID: 1, Count: 1, Payload: []byte("xyz")}).Data
		_, err := stream.DecodeFlat(data[:10])
		require.ErrorIs(t, err, stream.ErrShortBuffer)
	})
	t.Run("truncated payload", func(t *testing.T) {
		data := stream.Encode(stream.RecordBatch{StreamID: 1, Count: 1, Payload: []byte("xyz")}).Data
		_, err := stream.DecodeFlat(data[:len(data)-1])
		require.ErrorIs(t, err, stream.ErrShortBuffer)
	})
	t.Run("bad magic", func(t *testing.T) {
		data := stream.Encode(stream.RecordBatch{StreamID: 1, Count: 1, Payload: []byte("xyz")}).Data
		data[0] = 0x00
		_, err := stream.DecodeFlat(data)
		require.ErrorIs(t, err, stream.ErrBadMagic)
	})
	t.Run("corrupted payload", func(t *testing.T) {
		data := stream.Encode(stream.RecordBatch{StreamID: 1, Count: 1, Payload: []byte("xyz")}).Data
		data[len(data)-5] = 0x99
		_, err := stream.DecodeFlat(data)
		require.ErrorIs(t, err, stream.CRCMismatchError{})
	})
	t.Run("trailing data", func(t *testing.T) {
		data := stream.Encode(stream.RecordBatch{StreamID: 1, Count: 1, Payload: []byte("xyz")}).Data
		data = append(data, 0x00)
		_, err := stream.DecodeFlat(data)
		require.ErrorIs(t, err, stream.ErrTrailingData)
	})
}

func TestScanFlat(t *testing.T) {
	t.Run("multiple batches", func(t *testing.T) {
		a := stream.Encode(stream.RecordBatch{StreamID: 1, BaseOffset: 0, Count: 2, Payload: []byte("aa")})
		b := stream.Encode(stream.RecordBatch{StreamID: 1, BaseOffset: 2, Count: 2, Payload: []byte("bb")})
		c := stream.Encode(stream.RecordBatch{StreamID: 2, BaseOffset: 0, Count: 1, Payload: []byte("cc")})
		batches, err := stream.ScanFlat(testutils.Flatten(a.Data, b.Data, c.Data))
		require.NoError(t, err)
		require.Len(t, batches, 3)
		require.Equal(t, a.Data, batches[0].Data)
		require.Equal(t, uint64(2), batches[1].BaseOffset)
		require.Equal(t, uint64(2), batches[2].StreamID)
	})
	t.Run("empty input", func(t *testing.T) {
		batches, err := stream.ScanFlat(nil)
		require.NoError(t, err)
		require.Empty(t, batches)
	})
	t.Run("corruption mid-buffer", func(t *testing.T) {
		a := stream.Encode(stream.RecordBatch{StreamID: 1, BaseOffset: 0, Count: 2, Payload: []byte("aa")})
		b := stream.Encode(stream.RecordBatch{StreamID: 1, BaseOffset: 2, Count: 2, Payload: []byte("bb")})
		data := testutils.Flatten(a.Data, b.Data)
		data[len(a.Data)+1] = 0xff
		_, err := stream.ScanFlat(data)
		require.ErrorIs(t, err, stream.CRCMismatchError{})
	})
}

func TestRecord(t *testing.T) {
	batch := stream.RecordBatch{StreamID: 9, BaseOffset: 7, Count: 4, Payload: []byte("data")}
	flat := stream.Encode(batch)
	require.Equal(t, batch, flat.Record())
	require.Equal(t, "9:[7,11)", flat.String())
	require.Equal(t, "9:[7,11)", batch.String())
}
