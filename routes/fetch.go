package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util"
	"github.com/wkalt/strata/util/httputil"
	"github.com/wkalt/strata/util/log"
)

/*
The fetch route returns the contiguous run of batches for a stream beginning
at the requested start offset, merging migrated and cached data.
*/

////////////////////////////////////////////////////////////////////////////////

// Batch is the wire form of one record batch.
type Batch struct {
	StreamID   uint64 `json:"streamId"`
	BaseOffset uint64 `json:"baseOffset"`
	Count      uint32 `json:"count"`
	Payload    []byte `json:"payload"`
}

// FetchRequest is a request for a stream's batches in an offset window.
type FetchRequest struct {
	StreamID uint64 `json:"streamId"`
	Start    uint64 `json:"start"`
	End      uint64 `json:"end"`
	MaxBytes int    `json:"maxBytes"`
}

func (req FetchRequest) validate() error {
	if req.End <= req.Start {
		return fmt.Errorf("invalid window [%d, %d)", req.Start, req.End)
	}
	return nil
}

// FetchResponse is the response to a fetch. NextOffset is where a subsequent
// fetch should resume, and equals the requested start when nothing was
// found.
type FetchResponse struct {
	Records    []Batch `json:"records"`
	NextOffset uint64  `json:"nextOffset"`
	SizeBytes  int     `json:"sizeBytes"`
}

func newFetchHandler(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := FetchRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		log.Debugw(ctx, "fetch request",
			"stream", req.StreamID,
			"start", req.Start,
			"end", req.End,
			"maxBytes", req.MaxBytes,
		)
		result, err := e.Read(ctx, req.StreamID, req.Start, req.End, req.MaxBytes)
		if err != nil {
			if errors.Is(err, engine.ErrInvalidWindow) {
				httputil.BadRequest(ctx, w, "invalid request: %s", err)
				return
			}
			httputil.InternalServerError(ctx, w, "error reading stream %d: %s", req.StreamID, err)
			return
		}
		response := FetchResponse{
			Records: util.Map(func(record stream.RecordBatch) Batch {
				return Batch{
					StreamID:   record.StreamID,
					BaseOffset: record.BaseOffset,
					Count:      record.Count,
					Payload:    record.Payload,
				}
			}, result.Records),
			NextOffset: result.NextOffset,
			SizeBytes:  result.SizeBytes,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Errorw(ctx, "error writing response", "error", err)
		}
	}
}
