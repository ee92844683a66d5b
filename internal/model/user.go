package model

import "time"

// Role is a user's privilege level.  Higher values include the
// privileges of lower ones.
type Role int

const (
	RoleUser    Role = 0
	RoleManager Role = 1
	RoleAdmin   Role = 999
)

// User represents an application user record as stored in the `users`
// table.  Email and password are absent for accounts created through an
// external identity provider.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address (nullable).
//  PasswordHash – bcrypt hashed password (nullable).
//  FirstName    – given name.
//  LastName     – family name.
//  PhoneNumber  – unique phone number (nullable).
//  MFAKey       – TOTP shared secret; MFA is enabled when non-nil.
//  Banned       – banned users cannot authenticate.
//  Role         – privilege level.
type User struct {
	ID           uint64  // users.id
	Email        *string // users.email
	PasswordHash *string // users.password
	FirstName    string  // users.first_name
	LastName     string  // users.last_name
	PhoneNumber  *int64  // users.phone_number
	MFAKey       *string // users.mfa_key
	Banned       bool    // users.banned
	Role         Role    // users.role
}

// MFAEnabled reports whether sensitive actions require a TOTP code.
func (u User) MFAEnabled() bool { return u.MFAKey != nil && *u.MFAKey != "" }

// Session models an entry of the `sessions` table.  The opaque Token is
// embedded in the signed session claim so that a guessed session id alone
// is never enough to authenticate.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the session.
//  Token     – opaque random token.
//  ExpiresAt – expiration timestamp.
type Session struct {
	ID        uint64    // sessions.id
	UserID    uint64    // sessions.user_id
	Token     string    // sessions.token
	ExpiresAt time.Time // sessions.expires_at
}

// ExternalAuth links a user to an account at an external identity
// provider.
type ExternalAuth struct {
	ID           uint64
	UserID       uint64
	Service      string
	ServiceID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
