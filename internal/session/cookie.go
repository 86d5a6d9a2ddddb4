package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cookies carries session ids in an HMAC-signed cookie. The signature only
// proves the id was issued by this server; the store remains the authority.
type Cookies struct {
	name   string
	secret []byte
	secure bool
	ttl    time.Duration
}

func NewCookies(name, secret string, secure bool, ttl time.Duration) *Cookies {
	return &Cookies{name: name, secret: []byte(secret), secure: secure, ttl: ttl}
}

// Name returns the cookie name.
func (c *Cookies) Name() string {
	return c.name
}

// NewID allocates a fresh random session id.
func (c *Cookies) NewID() string {
	return uuid.NewString()
}

// Read returns the session id from r if a correctly signed cookie is present.
func (c *Cookies) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", false
	}
	sessionID, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || sessionID == "" {
		return "", false
	}
	expected := c.sign(sessionID)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", false
	}
	return sessionID, true
}

// Write sets the signed session cookie on w.
func (c *Cookies) Write(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    sessionID + "." + c.sign(sessionID),
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie on the client.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *Cookies) sign(sessionID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
