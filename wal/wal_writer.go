package wal

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/wkalt/strata/util"
)

/*
The WAL writer is used to write records to the write-ahead log. The format of
the write-ahead log is as follows:

    Magic: 6 bytes (strwal)
    Version: 2 bytes (major, minor)
    [Record]*

Where each Record is:
    Type: 1 byte
    Length: 8 bytes
    Data: [Length]byte
    CRC32: 4 bytes

The CRC is calculated over all preceding bytes of the record - i.e including
the record type. The type may be "append" or "trim".

The writer does no locking of its own; the file WAL serializes access to it.
*/

////////////////////////////////////////////////////////////////////////////////

// Magic is the magic number for the WAL file.
var Magic = []byte{'s', 't', 'r', 'w', 'a', 'l'} // nolint:gochecknoglobals

const (
	currentMajor = uint8(0)
	currentMinor = uint8(0)
)

type Writer struct {
	writer io.Writer
	offset int64
}

// NewWriter creates a new WAL writer.
func NewWriter(w io.Writer, initialOffset int64) (*Writer, error) {
	if initialOffset == 0 {
		buf := make([]byte, 8)
		offset := copy(buf, Magic)
		offset += util.U8(buf[offset:], currentMajor)
		util.U8(buf[offset:], currentMinor)
		n, err := w.Write(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to write WAL magic: %w", err)
		}
		initialOffset = int64(n)
	}
	return &Writer{
		writer: w,
		offset: initialOffset,
	}, nil
}

// WriteAppend writes an append record carrying one payload at a sequence.
func (w *Writer) WriteAppend(seq uint64, data []byte) (int, error) {
	header := make([]byte, 8)
	util.U64(header, seq)
	return w.writeRecord(WALAppend, header, data)
}

// WriteTrim writes a trim record.
func (w *Writer) WriteTrim(offset uint64) (int, error) {
	data := make([]byte, 8)
	util.U64(data, offset)
	return w.writeRecord(WALTrim, nil, data)
}

func (w *Writer) size() int64 {
	return w.offset
}

// writeRecord writes a record to the WAL.
func (w *Writer) writeRecord(rectype RecordType, header []byte, data []byte) (n int, err error) {
	buf := make([]byte, 1+8+len(header)+len(data)+4)
	offset := 0
	offset += util.U8(buf[offset:], uint8(rectype))
	offset += util.U64(buf[offset:], uint64(len(header)+len(data)))
	if len(header) > 0 {
		offset += copy(buf[offset:], header)
	}
	offset += copy(buf[offset:], data)

	crc := crc32.ChecksumIEEE(buf[:offset])
	util.U32(buf[offset:], crc)

	n, err = w.writer.Write(buf)
	w.offset += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write record: %w", err)
	}
	if f, ok := w.writer.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return n, fmt.Errorf("failed to flush writer: %w", err)
		}
	}
	return n, nil
}
