package handlers

import (
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

// CredentialsRequest is the body of register and both JSON login flows.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req *CredentialsRequest) normalize() {
	req.Username = strings.TrimSpace(req.Username)
}

// validateRegistration applies the full username and password rules.
func validateRegistration(req CredentialsRequest) map[string]string {
	fields := map[string]string{}
	switch n := utf8.RuneCountInString(req.Username); {
	case n == 0:
		fields["username"] = "is required"
	case n < minUsernameLen || n > maxUsernameLen:
		fields["username"] = "must be between 3 and 30 characters"
	case !validUsername(req.Username):
		fields["username"] = "may only contain letters, digits, '_', '.' and '-'"
	}

	switch {
	case req.Password == "":
		fields["password"] = "is required"
	case utf8.RuneCountInString(req.Password) < minPasswordLen:
		fields["password"] = "must be at least 6 characters"
	case len(req.Password) > maxPasswordBytes:
		fields["password"] = "must be at most 72 bytes"
	}
	return fields
}

// validateLogin only checks presence. Length rules are not applied so a
// login attempt never reveals them.
func validateLogin(req CredentialsRequest) map[string]string {
	fields := map[string]string{}
	if req.Username == "" {
		fields["username"] = "is required"
	}
	if req.Password == "" {
		fields["password"] = "is required"
	}
	return fields
}

func validUsername(username string) bool {
	for _, c := range username {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '-':
		default:
			return false
		}
	}
	return true
}
