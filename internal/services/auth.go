package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/finevents/apiserver/internal/apierr"
	"github.com/finevents/apiserver/internal/auth"
	"github.com/finevents/apiserver/internal/metrics"
	"github.com/finevents/apiserver/internal/mq"
	"github.com/finevents/apiserver/internal/store"
	"github.com/finevents/apiserver/types"
	"github.com/sirupsen/logrus"
)

// Login methods, used as metric labels.
const (
	MethodJSON    = "json"
	MethodBasic   = "basic"
	MethodSession = "session"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, username, passwordHash string) (types.User, error)
	FindByUsername(ctx context.Context, username string) (types.User, error)
	FindByID(ctx context.Context, id string) (types.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(userID, username string) (string, error)
}

// SessionStore binds session ids to identities.
type SessionStore interface {
	Put(ctx context.Context, sessionID string, identity types.Identity) error
	Destroy(ctx context.Context, sessionID string) error
}

// Publisher delivers best-effort notifications.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, data any) error
}

// AuthService implements registration, the three login flows, logout and
// profile lookup on top of the credential store, hasher, token authority and
// session store.
type AuthService struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	sessions  SessionStore
	publisher Publisher
	metrics   *metrics.Metrics
	log       logrus.FieldLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	sessions SessionStore,
	publisher Publisher,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		sessions:  sessions,
		publisher: publisher,
		metrics:   m,
		log:       log.WithField("component", "auth"),
	}
}

// Register creates an account and returns it with a fresh bearer token.
func (s *AuthService) Register(ctx context.Context, username, password string) (types.User, string, error) {
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		s.metrics.ObserveRegistration("error")
		return types.User{}, "", err
	}
	if exists {
		s.metrics.ObserveRegistration("conflict")
		return types.User{}, "", apierr.Conflict("Username already exists")
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.metrics.ObserveRegistration("error")
		return types.User{}, "", err
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent registration of the same name.
			s.metrics.ObserveRegistration("conflict")
			return types.User{}, "", apierr.Conflict("Username already exists")
		}
		s.metrics.ObserveRegistration("error")
		return types.User{}, "", err
	}
	user.PasswordHash = ""

	token, err := s.issue(user)
	if err != nil {
		s.metrics.ObserveRegistration("error")
		return types.User{}, "", err
	}

	s.metrics.ObserveRegistration("success")
	s.log.WithField("user_id", user.ID).Info("user registered")
	s.notify(ctx, mq.ChannelUserRegistered, map[string]any{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
	return user, token, nil
}

// Authenticate verifies a username/password pair. Unknown users and wrong
// passwords yield the same error after comparable work.
func (s *AuthService) Authenticate(ctx context.Context, method, username, password string) (types.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.burnVerify(ctx, password)
			s.metrics.ObserveLogin(method, "invalid_credentials")
			return types.User{}, apierr.InvalidCredentials()
		}
		s.metrics.ObserveLogin(method, "error")
		return types.User{}, err
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		s.metrics.ObserveLogin(method, "error")
		return types.User{}, fmt.Errorf("verify password for %s: %w", user.ID, err)
	}
	if !ok {
		s.metrics.ObserveLogin(method, "invalid_credentials")
		return types.User{}, apierr.InvalidCredentials()
	}

	s.metrics.ObserveLogin(method, "success")
	user.PasswordHash = ""
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, method, username, password string) (types.User, string, error) {
	user, err := s.Authenticate(ctx, method, username, password)
	if err != nil {
		return types.User{}, "", err
	}
	token, err := s.issue(user)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// StartSession verifies credentials and binds sessionID to the user.
func (s *AuthService) StartSession(ctx context.Context, sessionID, username, password string) (types.User, error) {
	user, err := s.Authenticate(ctx, MethodSession, username, password)
	if err != nil {
		return types.User{}, err
	}
	identity := types.Identity{UserID: user.ID, Username: user.Username}
	if err := s.sessions.Put(ctx, sessionID, identity); err != nil {
		return types.User{}, fmt.Errorf("bind session: %w", err)
	}
	return user, nil
}

// EndSession destroys the session, if any. It is idempotent.
func (s *AuthService) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		s.log.WithError(err).Error("session teardown failed")
		return apierr.SessionTeardown()
	}
	return nil
}

// Profile returns the stored user for an already-resolved identity.
func (s *AuthService) Profile(ctx context.Context, userID string) (types.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apierr.NotFound("User not found")
		}
		return types.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) issue(user types.User) (string, error) {
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		if errors.Is(err, auth.ErrConfiguration) {
			s.log.Error("JWT secret is not configured")
			return "", apierr.Configuration()
		}
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// burnVerify runs a comparison against a throwaway hash so that a miss on
// the username costs about as much as a wrong password.
func (s *AuthService) burnVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		var buf [16]byte
		_, _ = rand.Read(buf[:])
		hash, err := s.hasher.Hash(context.Background(), hex.EncodeToString(buf[:]))
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
	}
}

func (s *AuthService) notify(ctx context.Context, channel string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(ctx, channel, data); err != nil {
		s.log.WithError(err).WithField("channel", channel).Warn("publish notification failed")
	}
}
