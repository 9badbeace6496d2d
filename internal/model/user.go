// Package model defines the data structures used throughout the application.
package model

import "time"

// AuthProvider tags how an account authenticates. It replaces the classic
// trick of storing a sentinel string in the password-hash column: the
// account kind is an explicit, typed field, and the hash column only ever
// holds a real bcrypt digest (or is empty for provider accounts).
type AuthProvider string

const (
	// ProviderLocal marks an account created through /sign-up with a password.
	ProviderLocal AuthProvider = "local"
	// ProviderGoogle marks an account created through the Google OAuth flow.
	// These accounts have no password hash and cannot sign in locally.
	ProviderGoogle AuthProvider = "google"
)

// User represents a registered account.
//
// Username is a human-chosen label and is not unique; Email is the canonical
// identifier and carries a UNIQUE constraint in the store. Records are created
// on first sign-up or first Google callback and never mutated by the auth
// flows.
//
// PasswordHash is tagged `json:"-"` so it can never leak through an encoder,
// and Sanitize clears it before a record crosses out of the service layer.
// Both guards are deliberate: the JSON tag covers accidental marshalling, the
// explicit strip covers non-JSON consumers.
type User struct {
	ID           string       `json:"id"        db:"id"`
	Username     string       `json:"username"  db:"username"`
	Email        string       `json:"email"     db:"email"`
	Provider     AuthProvider `json:"provider"  db:"auth_provider"`
	PasswordHash string       `json:"-"         db:"password_hash"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// Sanitize returns a copy of the user with the password hash stripped.
// Every service method that hands a user to a caller outside the store
// boundary returns a sanitized copy.
func (u *User) Sanitize() *User {
	clean := *u
	clean.PasswordHash = ""
	return &clean
}

// IsLocal reports whether the account authenticates with a password.
func (u *User) IsLocal() bool {
	return u.Provider == ProviderLocal
}
