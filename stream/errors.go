package stream

import (
	"errors"
	"fmt"
)

// ErrBadMagic is returned when a batch does not start with the expected magic.
var ErrBadMagic = errors.New("bad batch magic")

// ErrShortBuffer is returned when a buffer ends before the framed batch does.
var ErrShortBuffer = errors.New("short buffer")

// ErrTrailingData is returned when a buffer expected to hold exactly one
// batch contains additional data.
var ErrTrailingData = errors.New("trailing data after batch")

// CRCMismatchError is returned when the CRC of a batch does not match the
// computed CRC.
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
