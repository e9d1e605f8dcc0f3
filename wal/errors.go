package wal

import (
	"errors"
	"fmt"
)

// ErrWALClosed is returned on appends or trims to a closed WAL.
var ErrWALClosed = errors.New("wal closed")

// ErrBadMagic is returned when the WAL magic is not as expected.
var ErrBadMagic = errors.New("bad WAL magic")

// UnsupportedWALError is returned when the WAL version is not supported by the server.
type UnsupportedWALError struct {
	major, minor uint8
}

func (e UnsupportedWALError) Error() string {
	return fmt.Sprintf("unsupported WAL version: %d.%d (current: %d.%d)", e.major, e.minor, currentMajor, currentMinor)
}

func (e UnsupportedWALError) Is(target error) bool {
	_, ok := target.(UnsupportedWALError)
	return ok
}

// CRCMismatchError is returned when the CRC of a record does not match the computed CRC.
type CRCMismatchError struct {
	expected, actual uint32
}

func (e CRCMismatchError) Error() string {
	return fmt.Sprintf("expected CRC %d, got %d", e.expected, e.actual)
}

func (e CRCMismatchError) Is(target error) bool {
	_, ok := target.(CRCMismatchError)
	return ok
}
