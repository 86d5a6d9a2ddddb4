package handlers

import (
	"net/http"
	"strings"

	"github.com/finevents/apiserver/internal/apierr"
	"github.com/finevents/apiserver/internal/services"
	"github.com/finevents/apiserver/internal/session"
	"github.com/finevents/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const basicRealm = `Basic realm="finevents", charset="UTF-8"`

// AuthHandler provides the credential entry points.
type AuthHandler struct {
	authService *services.AuthService
	cookies     *session.Cookies
	log         logrus.FieldLogger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, cookies *session.Cookies, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, cookies *session.Cookies, authn *Authenticator, log logrus.FieldLogger) {
	handler := NewAuthHandler(authService, cookies, log)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/basic", handler.BasicLogin)
	r.Post("/session/login", handler.SessionLogin)
	r.Post("/logout", handler.Logout)
	r.With(authn.RequireToken).Get("/profile", handler.Profile)
	r.With(authn.RequireSession).Get("/session/profile", handler.Profile)
	r.With(authn.Authenticate).Get("/me", handler.Profile)
}

// Register creates a new user account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	req.normalize()
	if fields := validateRegistration(req); len(fields) > 0 {
		writeError(w, r, h.log, apierr.Validation(fields))
		return
	}

	user, token, err := h.authService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Message: "User registered", User: user, Token: token})
}

// Login verifies JSON credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	req.normalize()
	if fields := validateLogin(req); len(fields) > 0 {
		writeError(w, r, h.log, apierr.Validation(fields))
		return
	}

	user, token, err := h.authService.Login(r.Context(), services.MethodJSON, req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Message: "Login successful", User: user, Token: token})
}

// BasicLogin verifies an HTTP Basic Authorization header and returns a JWT.
func (h *AuthHandler) BasicLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	username = strings.TrimSpace(username)
	if !ok || username == "" || password == "" {
		w.Header().Set("WWW-Authenticate", basicRealm)
		writeError(w, r, h.log, apierr.MissingCredential("A valid Basic Authorization header is required"))
		return
	}

	user, token, err := h.authService.Login(r.Context(), services.MethodBasic, username, password)
	if err != nil {
		if apiErr, isAPI := apierr.As(err); isAPI && apiErr.Status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", basicRealm)
		}
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Message: "Login successful", User: user, Token: token})
}

// SessionLogin verifies credentials and binds a fresh session to the client.
func (h *AuthHandler) SessionLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	req.normalize()
	if fields := validateLogin(req); len(fields) > 0 {
		writeError(w, r, h.log, apierr.Validation(fields))
		return
	}

	// Always a fresh id, never the one the client presented.
	sessionID := h.cookies.NewID()
	user, err := h.authService.StartSession(r.Context(), sessionID, req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	if previous, ok := h.cookies.Read(r); ok {
		if err := h.authService.EndSession(r.Context(), previous); err != nil {
			h.log.WithError(err).Warn("failed to discard previous session")
		}
	}

	h.cookies.Write(w, sessionID)
	writeJSON(w, http.StatusOK, SessionResponse{Message: "Login successful", User: user})
}

// Logout destroys the current session, if any, and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := h.cookies.Read(r)
	h.cookies.Clear(w)

	if err := h.authService.EndSession(r.Context(), sessionID); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Profile returns the stored user behind the resolved identity.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	user, err := h.authService.Profile(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{User: user})
}

type AuthResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
	Token   string     `json:"token"`
}

type SessionResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

type ProfileResponse struct {
	User types.User `json:"user"`
}
