package auth

import (
	"context"
	"time"
)

// IdentityStore is the user-account collaborator. Lookups must return the
// current role and active flag; callers never cache results across requests.
type IdentityStore interface {
	FindByID(ctx context.Context, id int64) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	Create(ctx context.Context, ident *Identity) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetActive(ctx context.Context, id int64, active bool) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (Identity, error)
}
