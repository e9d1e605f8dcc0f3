package engine

import (
	"sync/atomic"

	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util"
)

// Ack resolves once the append is durable and every earlier append has
// resolved. Its value is the append's log offset.
type Ack = util.Future[uint64]

// request tracks one append from log staging to acknowledgment. err is
// written by the log watcher before failed is set, and read only after
// observing failed.
type request struct {
	batch  stream.FlatBatch
	offset uint64
	ack    *Ack
	err    error
	failed atomic.Bool
}
