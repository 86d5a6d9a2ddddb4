package handlers

import (
	"net/http"

	"github.com/finevents/apiserver/internal/auth"
	"github.com/finevents/apiserver/internal/session"
	"github.com/sirupsen/logrus"
)

// Authenticator adapts the resolver to chi middleware. Each policy gets one
// thin wrapper over the same decision function.
type Authenticator struct {
	resolver *auth.Resolver
	cookies  *session.Cookies
	log      logrus.FieldLogger
}

func NewAuthenticator(resolver *auth.Resolver, cookies *session.Cookies, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{resolver: resolver, cookies: cookies, log: log}
}

// Authenticate accepts a bearer token or a session and rejects anonymous requests.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return a.With(auth.PolicyAny)(next)
}

// OptionalAuth attaches an identity when one is presented and otherwise
// continues anonymously.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return a.With(auth.PolicyOptional)(next)
}

func (a *Authenticator) RequireToken(next http.Handler) http.Handler {
	return a.With(auth.PolicyToken)(next)
}

func (a *Authenticator) RequireSession(next http.Handler) http.Handler {
	return a.With(auth.PolicySession)(next)
}

// With builds middleware enforcing policy p.
func (a *Authenticator) With(p auth.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.resolver.Resolve(r.Context(), a.materials(r), p)
			if err != nil {
				writeError(w, r, a.log, err)
				return
			}
			if identity != nil {
				r = r.WithContext(auth.WithIdentity(r.Context(), *identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) materials(r *http.Request) auth.Materials {
	m := auth.Materials{Authorization: r.Header.Get("Authorization")}
	if sessionID, ok := a.cookies.Read(r); ok {
		m.SessionID = sessionID
	}
	return m
}
