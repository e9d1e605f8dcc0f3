package httputil_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/strata/util/httputil"
)

type detailedError struct {
	msg    string
	detail string
}

func (e detailedError) Error() string {
	return e.msg
}

func (e detailedError) Detail() string {
	return e.detail
}

func TestBadRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.BadRequest(r.Context(), w, "bad request")
	})
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	require.Equal(t, `{"error":"bad request"}`+"\n", recorder.Body.String())
}

func TestNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(r.Context(), w, "no such stream %d", 42)
	})
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Equal(t, `{"error":"no such stream 42"}`+"\n", recorder.Body.String())
}

func TestUnauthorized(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.Unauthorized(r.Context(), w, "invalid shared key")
	})
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, `{"error":"invalid shared key"}`+"\n", recorder.Body.String())
}

func TestInternalServerError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.InternalServerError(r.Context(), w, "kaboom")
	})
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	require.Equal(t, `{"error":"internal server error"}`+"\n", recorder.Body.String())
}

func TestErrorDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fmt.Errorf("wrapped: %w", detailedError{msg: "bad request", detail: "much detail"})
		httputil.BadRequest(r.Context(), w, "%w", err)
	})
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, `{"error":"wrapped: bad request","detail":"much detail"}`+"\n", recorder.Body.String())
}
