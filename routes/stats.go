package routes

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/util/httputil"
	"github.com/wkalt/strata/util/log"
)

/*
The stats route serves a snapshot of the engine's confirmation counters and
cache occupancy.
*/

////////////////////////////////////////////////////////////////////////////////

func newStatsHandler(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats, err := e.Stats(ctx)
		if err != nil {
			httputil.InternalServerError(ctx, w, "error reading stats: %s", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Errorw(ctx, "error writing response", "error", err)
		}
	}
}
