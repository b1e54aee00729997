package auth

import (
	"strconv"
	"time"
)

// Identity is a user account as seen by the auth core.
type Identity struct {
	ID           int64
	Email        string
	FullName     string
	Role         Role
	Active       bool
	PasswordHash string
	NotifyEmail  bool
	NotifyPush   bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject is the token subject bound to the identity.
func (i Identity) Subject() string {
	return strconv.FormatInt(i.ID, 10)
}

// Registration carries the input of a new account.
type Registration struct {
	Email    string
	Password string
	FullName string
	Role     Role
}

// ProfileUpdate lists the mutable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FullName    *string
	Email       *string
	NotifyEmail *bool
	NotifyPush  *bool
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.Email == nil && u.NotifyEmail == nil && u.NotifyPush == nil
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	ExpiresIn time.Duration
	Identity  Identity
}
