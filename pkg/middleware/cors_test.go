package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(h http.Handler, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/lessons", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_AllowedOriginWithCredentials(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"http://localhost:3000"}))(okHandler)

	rec := corsRequest(h, http.MethodGet, "http://localhost:3000", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	assert.Equal(t, CorrelationIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"http://localhost:3000"}))(okHandler)

	rec := corsRequest(h, http.MethodGet, "https://evil.example", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_WildcardEchoesOriginWhenCredentialed(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"*"}))(okHandler)
	rec := corsRequest(h, http.MethodGet, "https://app.example", false)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	cfg := DefaultCORSConfig([]string{"*"})
	cfg.AllowCredentials = false
	rec = corsRequest(CORS(cfg)(okHandler), http.MethodGet, "https://app.example", false)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_TrailingSlashInConfigIsIgnored(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"http://localhost:3000/"}))(okHandler)
	rec := corsRequest(h, http.MethodGet, "http://localhost:3000", false)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(DefaultCORSConfig([]string{"http://localhost:3000"}))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rec := corsRequest(h, http.MethodOptions, "http://localhost:3000", true)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"http://localhost:3000"}))(okHandler)
	rec := corsRequest(h, http.MethodOptions, "http://localhost:3000", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}
