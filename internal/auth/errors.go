package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")

	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInactiveAccount    = errors.New("auth: account inactive")
	ErrInvalidToken       = errors.New("auth: invalid token")
	// ErrUnavailable wraps identity store failures that are not "not found".
	ErrUnavailable = errors.New("auth: identity store unavailable")

	ErrUnknownRole      = errors.New("auth: unknown role")
	ErrRoleNotPermitted = errors.New("auth: role not permitted")
	ErrNotOwner         = errors.New("auth: not owner")
)
