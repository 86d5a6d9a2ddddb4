package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finevents/apiserver/internal/apierr"
	"github.com/finevents/apiserver/internal/metrics"
	"github.com/finevents/apiserver/types"
)

// Policy selects which credential channels a route accepts.
type Policy struct {
	Name         string
	AllowToken   bool
	AllowSession bool
	// Optional lets a request without any credential through anonymously.
	// A presented but invalid credential is still rejected.
	Optional bool
}

var (
	PolicyToken    = Policy{Name: "token", AllowToken: true}
	PolicySession  = Policy{Name: "session", AllowSession: true}
	PolicyAny      = Policy{Name: "any", AllowToken: true, AllowSession: true}
	PolicyOptional = Policy{Name: "optional", AllowToken: true, AllowSession: true, Optional: true}
)

// Materials are the credential inputs extracted from one request.
type Materials struct {
	// Authorization is the raw Authorization header value.
	Authorization string
	// SessionID is the verified session cookie value, empty when absent.
	SessionID string
}

type TokenVerifier interface {
	Verify(token string) (types.Identity, error)
}

type SessionReader interface {
	Get(ctx context.Context, sessionID string) (types.Identity, bool, error)
}

// Resolver turns request credential materials into an identity. A bearer
// header always wins and never falls back to the session channel.
type Resolver struct {
	tokens   TokenVerifier
	sessions SessionReader
	metrics  *metrics.Metrics
}

func NewResolver(tokens TokenVerifier, sessions SessionReader, m *metrics.Metrics) *Resolver {
	return &Resolver{tokens: tokens, sessions: sessions, metrics: m}
}

// Resolve returns the identity for m under policy p. It returns (nil, nil)
// only for an optional policy with no credential present.
func (r *Resolver) Resolve(ctx context.Context, m Materials, p Policy) (*types.Identity, error) {
	identity, outcome, err := r.resolve(ctx, m, p)
	r.metrics.ObserveResolution(p.Name, outcome)
	return identity, err
}

func (r *Resolver) resolve(ctx context.Context, m Materials, p Policy) (*types.Identity, string, error) {
	if p.AllowToken {
		if token, present := BearerToken(m.Authorization); present {
			return r.resolveToken(token)
		}
		if !p.AllowSession {
			if p.Optional {
				return nil, "anonymous", nil
			}
			return nil, "missing", apierr.MissingCredential("A bearer token is required")
		}
	}

	if p.AllowSession {
		return r.resolveSession(ctx, m.SessionID, p.Optional)
	}

	return nil, "missing", apierr.MissingCredential("Authentication required")
}

func (r *Resolver) resolveToken(token string) (*types.Identity, string, error) {
	if token == "" {
		return nil, "invalid_token", apierr.InvalidToken()
	}
	identity, err := r.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, "error", fmt.Errorf("verify token: %w", apierr.Configuration())
		}
		return nil, "invalid_token", apierr.InvalidToken()
	}
	return &identity, "token", nil
}

func (r *Resolver) resolveSession(ctx context.Context, sessionID string, optional bool) (*types.Identity, string, error) {
	if sessionID != "" {
		identity, found, err := r.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, "error", fmt.Errorf("read session: %w", err)
		}
		if found {
			return &identity, "session", nil
		}
	}
	if optional {
		return nil, "anonymous", nil
	}
	return nil, "missing", apierr.MissingCredential("Authentication required")
}

// BearerToken extracts the token from a Bearer-scheme Authorization header.
// present is false when the header is empty or uses another scheme; a Bearer
// header with no token reports present with an empty token.
func BearerToken(header string) (token string, present bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
