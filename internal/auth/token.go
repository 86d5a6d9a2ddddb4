package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/finevents/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed validity window of every bearer token.
const TokenTTL = 24 * time.Hour

var (
	// ErrInvalidToken covers malformed, tampered and expired tokens alike.
	ErrInvalidToken = errors.New("invalid token")
	// ErrConfiguration is returned when no signing secret is configured.
	ErrConfiguration = errors.New("token signing secret is not configured")
)

// Claims is the payload carried by a bearer token.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenAuthority issues and verifies HS256 bearer tokens with a single
// process-wide secret. It is safe for concurrent use.
type TokenAuthority struct {
	secret []byte
	now    func() time.Time
}

func NewTokenAuthority(secret string) *TokenAuthority {
	return &TokenAuthority{
		secret: []byte(strings.TrimSpace(secret)),
		now:    time.Now,
	}
}

// Issue mints a token for the identity, valid for TokenTTL.
func (a *TokenAuthority) Issue(userID, username string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrConfiguration
	}

	now := a.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify returns the identity embedded in a valid token. Any failure is
// reported as ErrInvalidToken.
func (a *TokenAuthority) Verify(tokenString string) (types.Identity, error) {
	if len(a.secret) == 0 {
		return types.Identity{}, ErrConfiguration
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(token *jwt.Token) (any, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return types.Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID {
		return types.Identity{}, ErrInvalidToken
	}

	return types.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
