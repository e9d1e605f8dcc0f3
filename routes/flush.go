package routes

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/util/httputil"
	"github.com/wkalt/strata/util/log"
)

/*
The flush route migrates a stream's cached data to object storage
immediately, without waiting for the active block to fill. It responds once
the migration has committed, or immediately if the stream has no cached
data.
*/

////////////////////////////////////////////////////////////////////////////////

// FlushRequest is a request to migrate a stream's cached data now.
type FlushRequest struct {
	StreamID uint64 `json:"streamId"`
}

func newFlushHandler(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := FlushRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		log.Infow(ctx, "flush request", "stream", req.StreamID)
		if err := e.ForceUpload(ctx, req.StreamID); err != nil {
			httputil.InternalServerError(ctx, w, "error flushing stream %d: %s", req.StreamID, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
