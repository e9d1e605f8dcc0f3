package routes

import (
	"github.com/gorilla/mux"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/util/mw"
)

/*
routes contains the HTTP routes for the storage service. Append, fetch, and
flush form the data plane; stats exposes engine counters for monitoring.
*/

////////////////////////////////////////////////////////////////////////////////

// MakeRoutes builds the server's route table over the engine.
func MakeRoutes(e *engine.Engine, allowedOrigins []string, sharedKey string) *mux.Router {
	r := mux.NewRouter()
	r.Use(mw.WithRequestID)
	if len(allowedOrigins) > 0 {
		r.Use(mw.WithCORSAllowedOrigins(allowedOrigins))
	}
	if sharedKey != "" {
		r.Use(mw.WithSharedKey(sharedKey))
	}
	r.HandleFunc("/append", newAppendHandler(e)).Methods("POST")
	r.HandleFunc("/fetch", newFetchHandler(e)).Methods("POST")
	r.HandleFunc("/flush", newFlushHandler(e)).Methods("POST")
	r.HandleFunc("/stats", newStatsHandler(e)).Methods("GET")
	return r
}
