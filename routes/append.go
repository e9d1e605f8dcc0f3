package routes

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util/httputil"
	"github.com/wkalt/strata/util/log"
)

/*
The append route stages one record batch on a stream and responds with the
batch's log offset once it is durable and every earlier append has been
acknowledged.
*/

////////////////////////////////////////////////////////////////////////////////

// AppendRequest is a request to append one batch to a stream.
type AppendRequest struct {
	StreamID   uint64 `json:"streamId"`
	BaseOffset uint64 `json:"baseOffset"`
	Count      uint32 `json:"count"`
	Payload    []byte `json:"payload"`
}

func (req AppendRequest) validate() error {
	if req.Count == 0 {
		return errors.New("batch contains no records")
	}
	return nil
}

// AppendResponse is the response to an append.
type AppendResponse struct {
	Offset uint64 `json:"offset"`
}

func newAppendHandler(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := AppendRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		log.Debugw(ctx, "append request",
			"stream", req.StreamID,
			"base", req.BaseOffset,
			"count", req.Count,
		)
		ack := e.Append(ctx, stream.RecordBatch{
			StreamID:   req.StreamID,
			BaseOffset: req.BaseOffset,
			Count:      req.Count,
			Payload:    req.Payload,
		})
		offset, err := ack.Wait(ctx)
		if err != nil {
			httputil.InternalServerError(ctx, w, "error appending to stream %d: %s", req.StreamID, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(AppendResponse{Offset: offset}); err != nil {
			log.Errorw(ctx, "error writing response", "error", err)
		}
	}
}
