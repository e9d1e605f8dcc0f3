package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

/*
The storage provider interface describes the minimal set of operations the
engine requires of persistent object storage: whole-object writes, ranged
reads, and deletion. These must be supported by any popular object storage
implementation.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrObjectNotFound is returned when an object is not found.
var ErrObjectNotFound = errors.New("object not found")

// Provider is the interface for a storage provider.
type Provider interface {
	Put(ctx context.Context, id string, r io.Reader, size int64) error
	GetRange(ctx context.Context, id string, offset int, length int) ([]byte, error)
	Delete(ctx context.Context, id string) error
	fmt.Stringer
}
