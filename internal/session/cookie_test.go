package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, c *Cookies, write func(http.ResponseWriter)) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	write(rec)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestCookieWriteRead(t *testing.T) {
	c := NewCookies("finevents.sid", "session-secret", true, time.Hour)
	sid := c.NewID()

	cookie := roundTrip(t, c, func(w http.ResponseWriter) { c.Write(w, sid) })
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	got, ok := c.Read(req)
	require.True(t, ok)
	assert.Equal(t, sid, got)
}

func TestCookieRejectsBadSignature(t *testing.T) {
	issuer := NewCookies("finevents.sid", "other-secret", false, time.Hour)
	reader := NewCookies("finevents.sid", "session-secret", false, time.Hour)

	cookie := roundTrip(t, issuer, func(w http.ResponseWriter) { issuer.Write(w, "sid-1") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	_, ok := reader.Read(req)
	assert.False(t, ok)
}

func TestCookieRejectsMalformedValues(t *testing.T) {
	c := NewCookies("finevents.sid", "session-secret", false, time.Hour)

	for _, value := range []string{"", "no-signature", ".sig-only", "sid-1.wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "finevents.sid", Value: value})
		_, ok := c.Read(req)
		assert.False(t, ok, "value %q", value)
	}

	_, ok := c.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestCookieClear(t *testing.T) {
	c := NewCookies("finevents.sid", "session-secret", false, time.Hour)

	cookie := roundTrip(t, c, c.Clear)
	assert.Equal(t, "finevents.sid", cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestNewIDIsUnique(t *testing.T) {
	c := NewCookies("finevents.sid", "session-secret", false, time.Hour)
	assert.NotEqual(t, c.NewID(), c.NewID())
}
