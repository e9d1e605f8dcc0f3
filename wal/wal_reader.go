package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/wkalt/strata/util"
)

/*
The WAL reader provides an iterator interface for reading records from a WAL
file. It is used during recovery and replay on startup, and by the walinspect
command.
*/

////////////////////////////////////////////////////////////////////////////////

type walReader struct {
	r      io.Reader
	offset int64
}

func (r *walReader) Offset() int64 {
	return r.offset
}

// NewReader creates a new WAL reader.
func NewReader(r io.Reader) (*walReader, error) {
	if err := validateMagic(r); err != nil {
		return nil, err
	}
	offset := int64(len(Magic) + 2)
	return &walReader{r: r, offset: offset}, nil
}

// ParseAppendEntry parses the body of an append record.
func ParseAppendEntry(data []byte) AppendEntry {
	var seq uint64
	n := util.ReadU64(data, &seq)
	return AppendEntry{Seq: seq, Data: data[n:]}
}

// ParseTrimEntry parses the body of a trim record.
func ParseTrimEntry(data []byte) uint64 {
	var offset uint64
	util.ReadU64(data, &offset)
	return offset
}

// Next returns the next record from the WAL file, with CRC validation.
func (r *walReader) Next() (RecordType, []byte, error) {
	header := make([]byte, 1+8)
	_, err := io.ReadFull(r.r, header)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("failed to read record header: %w", err)
	}
	var offset int
	var rectype uint8
	var length uint64
	offset += util.ReadU8(header[offset:], &rectype)
	util.ReadU64(header[offset:], &length)
	body := make([]byte, length+4)
	_, err = io.ReadFull(r.r, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read record body: %w", err)
	}
	dataEnd := len(body) - 4
	computed := crc32.ChecksumIEEE(header)
	computed = crc32.Update(computed, crc32.IEEETable, body[:dataEnd])
	crc := binary.LittleEndian.Uint32(body[dataEnd:])
	if crc != computed {
		return 0, nil, CRCMismatchError{crc, computed}
	}
	r.offset += int64(1 + 8 + len(body))
	return RecordType(rectype), body[:dataEnd], nil
}

func validateMagic(r io.Reader) error {
	buf := make([]byte, 8)
	_, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrBadMagic
		}
		return fmt.Errorf("failed to read WAL magic: %w", err)
	}
	if !bytes.Equal(buf[:6], Magic) {
		return ErrBadMagic
	}
	major := buf[6]
	minor := buf[7]
	if major > currentMajor || (major == currentMajor && minor > currentMinor) {
		return UnsupportedWALError{major, minor}
	}
	return nil
}
