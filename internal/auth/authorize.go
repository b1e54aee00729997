package auth

import "slices"

// Resource describes the target of an authorization check.
type Resource struct {
	Type ResourceType
	// OwnerID is the account the resource belongs to; zero when unowned.
	OwnerID int64
	// ResidentIDs are the residents of the housing unit the resource is tied to.
	ResidentIDs []int64
}

// OwnedBy evaluates the ownership predicate for identity id.
func (r Resource) OwnedBy(id int64) bool {
	if id == 0 {
		return false
	}
	if r.OwnerID != 0 && r.OwnerID == id {
		return true
	}
	return slices.Contains(r.ResidentIDs, id)
}

// DenyReason explains a negative Decision.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonRoleNotPermitted
	ReasonNotOwner
)

func (r DenyReason) String() string {
	switch r {
	case ReasonRoleNotPermitted:
		return "role_not_permitted"
	case ReasonNotOwner:
		return "not_owner"
	default:
		return "none"
	}
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Err maps a denial onto ErrRoleNotPermitted or ErrNotOwner; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonNotOwner {
		return ErrNotOwner
	}
	return ErrRoleNotPermitted
}

var allow = Decision{Allowed: true}

// Authorize decides whether id may perform op on res. It performs no I/O and
// denies every combination the policy table does not grant.
func Authorize(id Identity, res Resource, op Operation) Decision {
	switch Grant(id.Role, res.Type, op) {
	case ScopeAny:
		return allow
	case ScopeOwn:
		if res.OwnedBy(id.ID) {
			return allow
		}
		return Decision{Reason: ReasonNotOwner}
	default:
		return Decision{Reason: ReasonRoleNotPermitted}
	}
}

// CanAdminister reports whether actor may create, enable or disable an account
// holding role. Super Admin accounts are administered only by Super Admins.
func CanAdminister(actor Identity, role Role) bool {
	if role == RoleSuperAdmin {
		return actor.Role == RoleSuperAdmin
	}
	return true
}
