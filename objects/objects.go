package objects

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

/*
The objects package tracks WAL data that has been migrated to object storage.
An upload reserves a manifest slot first ("prepare"), writes the object to
storage, and then finalizes the slot together with the stream ranges the
object contains ("commit"). Readers consult the manifest to map a stream
offset window onto object keys and byte ranges.

Only committed objects are visible to lookups. A crash between upload and
commit leaves at most an orphaned object in storage, never a half-migrated
one that a reader could see.
*/

////////////////////////////////////////////////////////////////////////////////

// Prepared is a reserved manifest slot for an object about to be uploaded.
type Prepared struct {
	ObjectID uint64 `json:"objectId"`
	Key      string `json:"key"`
}

// StreamRange locates a contiguous run of record batches for one stream
// within an uploaded object. Offsets are half-open; position and length are
// byte coordinates within the object.
type StreamRange struct {
	StreamID    uint64 `json:"streamId"`
	StartOffset uint64 `json:"startOffset"`
	EndOffset   uint64 `json:"endOffset"`
	Position    int    `json:"position"`
	Length      int    `json:"length"`
}

// CommitRequest finalizes a prepared object after its upload has succeeded.
type CommitRequest struct {
	Prepared
	Size   int64
	Ranges []StreamRange
}

// ObjectRange is a lookup result: a stream range plus the key of the object
// that holds it.
type ObjectRange struct {
	Key string
	StreamRange
}

// Manager is the object manifest.
type Manager interface {
	// Prepare reserves an object ID and storage key for an upcoming upload.
	Prepare(ctx context.Context) (Prepared, error)

	// Commit makes a prepared object and its stream ranges visible to
	// readers, atomically.
	Commit(ctx context.Context, req CommitRequest) error

	// Lookup returns committed ranges for the stream that overlap
	// [start, end), in increasing start offset order.
	Lookup(ctx context.Context, streamID uint64, start, end uint64) ([]ObjectRange, error)
}

// objectKey builds the storage key for an object. Keys are flat so that all
// storage providers, including directory-backed ones, can serve them.
func objectKey(objectID uint64) string {
	return fmt.Sprintf("wal-%d-%s", objectID, uuid.NewString())
}
