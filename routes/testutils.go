package routes

import (
	"net/http/httptest"
	"testing"

	"github.com/wkalt/strata/engine"
)

func MakeTestRoutes(t *testing.T, e *engine.Engine) (string, func()) {
	t.Helper()
	handler := MakeRoutes(e, nil, "")
	srv := httptest.NewServer(handler)
	return srv.URL, srv.Close
}
