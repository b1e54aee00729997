package auth

import (
	"errors"
	"fmt"
	"sort"
	"testing"
)

// Every non-unrestricted grant, as role:resource:operation:scope.
var expectedGrants = []string{
	"Residente:profile:read:own",
	"Residente:profile:update:own",
	"Residente:housing_unit:read:own",
	"Residente:expense:read:own",
	"Residente:fine:read:own",
	"Residente:payment:read:own",
	"Residente:reservation:read:own",
	"Residente:reservation:create:own",
	"Residente:reservation:delete:own",
	"Residente:announcement:read:any",

	"Directiva:profile:read:own",
	"Directiva:profile:update:own",
	"Directiva:housing_unit:read:own",
	"Directiva:expense:read:own",
	"Directiva:fine:read:own",
	"Directiva:fine:list:any",
	"Directiva:payment:read:own",
	"Directiva:reservation:read:own",
	"Directiva:reservation:create:own",
	"Directiva:reservation:delete:own",
	"Directiva:announcement:read:any",
	"Directiva:announcement:create:any",
	"Directiva:delinquency:list:any",

	"Conserje:profile:read:own",
	"Conserje:profile:update:own",
	"Conserje:housing_unit:read:any",
	"Conserje:housing_unit:list:any",
	"Conserje:expense:read:any",
	"Conserje:expense:list:any",
	"Conserje:fine:read:any",
	"Conserje:fine:list:any",
	"Conserje:fine:create:any",
	"Conserje:payment:read:any",
	"Conserje:payment:list:any",
	"Conserje:reservation:read:any",
	"Conserje:reservation:list:any",
	"Conserje:reservation:create:any",
	"Conserje:reservation:delete:any",
	"Conserje:announcement:read:any",
	"Conserje:resident:read:any",
	"Conserje:resident:list:any",
	"Conserje:delinquency:list:any",
}

func allRoles() []Role {
	return append(Roles(), RoleUnknown, Role(77))
}

func TestPolicyTableMatchesAudit(t *testing.T) {
	var got []string
	for _, role := range []Role{RoleResident, RoleBoard, RoleConcierge} {
		for _, res := range ResourceTypes() {
			for _, op := range Operations() {
				if s := Grant(role, res, op); s != ScopeNone {
					got = append(got, fmt.Sprintf("%s:%s:%s:%s", role, res, op, s))
				}
			}
		}
	}
	want := append([]string(nil), expectedGrants...)
	sort.Strings(got)
	sort.Strings(want)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("policy drifted\n got: %v\nwant: %v", got, want)
	}

	for _, role := range []Role{RoleAdministrator, RoleSuperAdmin} {
		for _, res := range ResourceTypes() {
			for _, op := range Operations() {
				if s := Grant(role, res, op); s != ScopeAny {
					t.Fatalf("%s %s %s scope = %s, want any", role, res, op, s)
				}
			}
		}
	}
}

func TestAuthorizeIsTotalAndFailClosed(t *testing.T) {
	resources := append(ResourceTypes(), ResourceType("bogus"))
	ops := append(Operations(), Operation("approve"))
	owned := func(res ResourceType) Resource { return Resource{Type: res, OwnerID: 10} }
	foreign := func(res ResourceType) Resource { return Resource{Type: res, OwnerID: 20} }

	for _, role := range allRoles() {
		id := Identity{ID: 10, Role: role}
		for _, res := range resources {
			for _, op := range ops {
				scope := Grant(role, res, op)
				for _, target := range []Resource{owned(res), foreign(res)} {
					d := Authorize(id, target, op)
					switch {
					case scope == ScopeNone:
						if d.Allowed || d.Reason != ReasonRoleNotPermitted {
							t.Fatalf("%s %s %s: got %+v, want RoleNotPermitted", role, res, op, d)
						}
					case scope == ScopeAny:
						if !d.Allowed {
							t.Fatalf("%s %s %s: got %+v, want allow", role, res, op, d)
						}
					case target.OwnerID == id.ID:
						if !d.Allowed {
							t.Fatalf("%s %s %s owned: got %+v, want allow", role, res, op, d)
						}
					default:
						if d.Allowed || d.Reason != ReasonNotOwner {
							t.Fatalf("%s %s %s foreign: got %+v, want NotOwner", role, res, op, d)
						}
					}
				}
			}
		}
	}
}

func TestElevatedRolesBypassOwnership(t *testing.T) {
	for _, role := range []Role{RoleAdministrator, RoleSuperAdmin} {
		id := Identity{ID: 1, Role: role}
		for _, res := range ResourceTypes() {
			d := Authorize(id, Resource{Type: res, OwnerID: 2, ResidentIDs: []int64{3}}, OpRead)
			if !d.Allowed {
				t.Fatalf("%s denied %s owned by another identity: %+v", role, res, d)
			}
		}
	}
}

func TestResidentOwnership(t *testing.T) {
	resident := Identity{ID: 5, Role: RoleResident}

	if d := Authorize(resident, Resource{Type: ResourceExpense, ResidentIDs: []int64{9}}, OpRead); d.Allowed || d.Reason != ReasonNotOwner {
		t.Fatalf("foreign unit: %+v", d)
	}
	if d := Authorize(resident, Resource{Type: ResourceExpense, ResidentIDs: []int64{9, 5}}, OpRead); !d.Allowed {
		t.Fatalf("resident of unit denied: %+v", d)
	}
	if d := Authorize(resident, Resource{Type: ResourceProfile, OwnerID: 5}, OpRead); !d.Allowed {
		t.Fatalf("own profile denied: %+v", d)
	}
	if d := Authorize(resident, Resource{Type: ResourceProfile}, OpRead); d.Allowed {
		t.Fatalf("unowned resource must not satisfy ownership: %+v", d)
	}
	if d := Authorize(resident, Resource{Type: ResourceFine}, OpCreate); d.Reason != ReasonRoleNotPermitted {
		t.Fatalf("resident creating fine: %+v", d)
	}
	if d := Authorize(resident, Resource{Type: ResourceDelinquency}, OpList); d.Reason != ReasonRoleNotPermitted {
		t.Fatalf("resident listing delinquency: %+v", d)
	}
}

func TestConciergeBypassIsNarrow(t *testing.T) {
	concierge := Identity{ID: 3, Role: RoleConcierge}
	other := func(res ResourceType) Resource { return Resource{Type: res, OwnerID: 8} }

	for _, res := range []ResourceType{ResourcePayment, ResourceFine, ResourceReservation, ResourceExpense} {
		if d := Authorize(concierge, other(res), OpRead); !d.Allowed {
			t.Fatalf("concierge denied %s: %+v", res, d)
		}
	}
	if d := Authorize(concierge, other(ResourceProfile), OpRead); d.Allowed || d.Reason != ReasonNotOwner {
		t.Fatalf("concierge read another profile: %+v", d)
	}
	if d := Authorize(concierge, other(ResourceAccount), OpUpdate); d.Reason != ReasonRoleNotPermitted {
		t.Fatalf("concierge toggled an account: %+v", d)
	}
}

func TestBoardAggregateViewsAreReadOnly(t *testing.T) {
	board := Identity{ID: 4, Role: RoleBoard}
	if d := Authorize(board, Resource{Type: ResourceDelinquency}, OpList); !d.Allowed {
		t.Fatalf("board denied delinquency view: %+v", d)
	}
	if d := Authorize(board, Resource{Type: ResourceFine}, OpList); !d.Allowed {
		t.Fatalf("board denied fine listing: %+v", d)
	}
	for _, op := range []Operation{OpCreate, OpUpdate, OpDelete} {
		if d := Authorize(board, Resource{Type: ResourceDelinquency}, op); d.Allowed {
			t.Fatalf("board allowed %s on delinquency", op)
		}
	}
	if d := Authorize(board, Resource{Type: ResourceFine, OwnerID: 99}, OpRead); d.Allowed {
		t.Fatalf("board read another resident's fine: %+v", d)
	}
	if d := Authorize(board, Resource{Type: ResourceFine}, OpCreate); d.Allowed {
		t.Fatalf("board created a fine")
	}
}

func TestCanAdminister(t *testing.T) {
	admin := Identity{ID: 1, Role: RoleAdministrator}
	super := Identity{ID: 2, Role: RoleSuperAdmin}
	for _, role := range Roles() {
		if !CanAdminister(super, role) {
			t.Fatalf("super admin must administer %v", role)
		}
		want := role != RoleSuperAdmin
		if got := CanAdminister(admin, role); got != want {
			t.Fatalf("CanAdminister(admin, %v) = %v, want %v", role, got, want)
		}
	}
}

func TestDecisionErr(t *testing.T) {
	if err := (Decision{Allowed: true}).Err(); err != nil {
		t.Fatalf("allowed decision err = %v", err)
	}
	if err := (Decision{Reason: ReasonNotOwner}).Err(); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if err := (Decision{Reason: ReasonRoleNotPermitted}).Err(); !errors.Is(err, ErrRoleNotPermitted) {
		t.Fatalf("err = %v, want ErrRoleNotPermitted", err)
	}
	if err := (Decision{}).Err(); !errors.Is(err, ErrRoleNotPermitted) {
		t.Fatalf("zero decision must deny, err = %v", err)
	}
}

func TestOwnedByZeroIdentity(t *testing.T) {
	if (Resource{Type: ResourceProfile}).OwnedBy(0) {
		t.Fatal("zero id must never own a resource")
	}
}
