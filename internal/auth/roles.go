package auth

import (
	"fmt"
	"strings"
)

// Role is one of the fixed account roles.
type Role int

const (
	RoleUnknown Role = iota
	RoleResident
	RoleAdministrator
	RoleConcierge
	RoleBoard
	RoleSuperAdmin
)

// Stored names, as they appear in the usuarios.rol column.
var roleDBNames = map[Role]string{
	RoleResident:      "Residente",
	RoleAdministrator: "Administrador",
	RoleConcierge:     "Conserje",
	RoleBoard:         "Directiva",
	RoleSuperAdmin:    "Super Admin",
}

// Labels consumed by the web client.
var roleLabels = map[Role]string{
	RoleResident:      "residente",
	RoleAdministrator: "admin",
	RoleConcierge:     "conserje",
	RoleBoard:         "directiva",
	RoleSuperAdmin:    "super_admin",
}

var (
	rolesByDBName = invert(roleDBNames)
	rolesByLabel  = invert(roleLabels)
)

func invert(m map[Role]string) map[string]Role {
	out := make(map[string]Role, len(m))
	for r, s := range m {
		out[s] = r
	}
	return out
}

// Roles lists every known role in declaration order.
func Roles() []Role {
	return []Role{RoleResident, RoleAdministrator, RoleConcierge, RoleBoard, RoleSuperAdmin}
}

// ParseRole maps a stored role name to a Role. Matching is exact.
func ParseRole(name string) (Role, error) {
	if r, ok := rolesByDBName[strings.TrimSpace(name)]; ok {
		return r, nil
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// ParseLabel maps a client label to a Role.
func ParseLabel(label string) (Role, error) {
	if r, ok := rolesByLabel[strings.TrimSpace(label)]; ok {
		return r, nil
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, label)
}

// LookupRole accepts either a stored name or a client label.
func LookupRole(s string) (Role, error) {
	if r, err := ParseRole(s); err == nil {
		return r, nil
	}
	return ParseLabel(s)
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := roleDBNames[r]
	return ok
}

// DBName returns the stored name for r.
func (r Role) DBName() (string, error) {
	if s, ok := roleDBNames[r]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
}

// Label returns the client-facing label for r.
func (r Role) Label() (string, error) {
	if s, ok := roleLabels[r]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
}

func (r Role) String() string {
	if s, ok := roleDBNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Role(%d)", int(r))
}
