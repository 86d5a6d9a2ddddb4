package types

import "time"

// User represents an account in the system.
type User struct {
	// ID is the opaque unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	// It is compared case-sensitively, exactly as stored.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the salted bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Identity is the principal resolved for a single request.
// It is never persisted and never shared across requests.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}
