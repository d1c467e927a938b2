package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		cookie    string
		wantToken string
		wantOK    bool
	}{
		{name: "bearer header", header: "Bearer abc.def.ghi", wantToken: "abc.def.ghi", wantOK: true},
		{name: "scheme is case insensitive", header: "bearer abc", wantToken: "abc", wantOK: true},
		{name: "header wins over cookie", header: "Bearer from-header", cookie: "from-cookie", wantToken: "from-header", wantOK: true},
		{name: "cookie only", cookie: "from-cookie", wantToken: "from-cookie", wantOK: true},
		{name: "basic auth falls back to cookie", header: "Basic dXNlcjpwYXNz", cookie: "from-cookie", wantToken: "from-cookie", wantOK: true},
		{name: "empty bearer falls back to cookie", header: "Bearer ", cookie: "from-cookie", wantToken: "from-cookie", wantOK: true},
		{name: "malformed bearer without cookie", header: "Bearer a b"},
		{name: "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "ol_jwt", Value: tt.cookie})
			}

			token, ok := ExtractCredential(r, "ol_jwt")

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestExtractCredential_IgnoresOtherCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "x"})

	_, ok := ExtractCredential(r, "ol_jwt")
	assert.False(t, ok)
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestCookieConfig_SetSession(t *testing.T) {
	t.Run("insecure uses lax", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CookieConfig{Name: "ol_jwt"}.SetSession(rec, "tok", 24*time.Hour)

		c := responseCookie(t, rec)
		assert.Equal(t, "ol_jwt", c.Name)
		assert.Equal(t, "tok", c.Value)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, 86400, c.MaxAge)
		assert.True(t, c.HttpOnly)
		assert.False(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	})

	t.Run("secure uses none", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CookieConfig{Name: "ol_jwt", Domain: "omnilearn.example", Secure: true}.SetSession(rec, "tok", time.Hour)

		c := responseCookie(t, rec)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
		assert.Equal(t, "omnilearn.example", c.Domain)
	})
}

func TestCookieConfig_ClearSession(t *testing.T) {
	rec := httptest.NewRecorder()
	CookieConfig{Name: "ol_jwt"}.ClearSession(rec)

	c := responseCookie(t, rec)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}
