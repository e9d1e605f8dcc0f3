package wal

/*
Common types used by the WAL package. The WAL stores two kinds of records:
appends, which carry one encoded record batch at an assigned sequence, and
trims, which mark every sequence at or below an offset reclaimable.
*/

////////////////////////////////////////////////////////////////////////////////

// RecordType is the type of record in the WAL.
type RecordType uint8

func (r RecordType) String() string {
	switch r {
	case WALAppend:
		return "append"
	case WALTrim:
		return "trim"
	default:
		return "invalid"
	}
}

const (
	WALInvalid RecordType = iota
	WALAppend
	WALTrim
)

// AppendEntry is the parsed body of an append record.
type AppendEntry struct {
	Seq  uint64
	Data []byte
}

// AppendResult is returned from Append calls. Offset is the sequence assigned
// to the record. Done resolves once a sync has made the record durable, or
// with an error if the sync failed. Resolution order across appends is
// unspecified.
type AppendResult struct {
	Offset uint64
	Done   <-chan error
}

// Stats contains statistics about the WAL.
type Stats struct {
	NextSeq uint64 `json:"nextSeq"`
	Trimmed uint64 `json:"trimmed"`
}
