package auth

// ResourceType names a class of protected data.
type ResourceType string

const (
	ResourceProfile      ResourceType = "profile"
	ResourceAccount      ResourceType = "account"
	ResourceHousingUnit  ResourceType = "housing_unit"
	ResourceExpense      ResourceType = "expense"
	ResourceFine         ResourceType = "fine"
	ResourcePayment      ResourceType = "payment"
	ResourceReservation  ResourceType = "reservation"
	ResourceAnnouncement ResourceType = "announcement"
	ResourceResident     ResourceType = "resident"
	ResourceDelinquency  ResourceType = "delinquency"
)

// Operation is an action on a resource. OpList covers collection-wide reads.
type Operation string

const (
	OpRead   Operation = "read"
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Scope says whether a grant requires the ownership predicate.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeAny
)

func (s Scope) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeAny:
		return "any"
	default:
		return "none"
	}
}

// ResourceTypes lists every resource type known to the policy.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceProfile, ResourceAccount, ResourceHousingUnit, ResourceExpense, ResourceFine,
		ResourcePayment, ResourceReservation, ResourceAnnouncement, ResourceResident, ResourceDelinquency,
	}
}

// Operations lists every operation known to the policy.
func Operations() []Operation {
	return []Operation{OpRead, OpList, OpCreate, OpUpdate, OpDelete}
}

type grants map[ResourceType]map[Operation]Scope

// policy is the role permission table. A missing entry is a denial.
var policy = map[Role]grants{
	RoleResident: {
		ResourceProfile:      {OpRead: ScopeOwn, OpUpdate: ScopeOwn},
		ResourceHousingUnit:  {OpRead: ScopeOwn},
		ResourceExpense:      {OpRead: ScopeOwn},
		ResourceFine:         {OpRead: ScopeOwn},
		ResourcePayment:      {OpRead: ScopeOwn},
		ResourceReservation:  {OpRead: ScopeOwn, OpCreate: ScopeOwn, OpDelete: ScopeOwn},
		ResourceAnnouncement: {OpRead: ScopeAny},
	},
	RoleBoard: {
		ResourceProfile:      {OpRead: ScopeOwn, OpUpdate: ScopeOwn},
		ResourceHousingUnit:  {OpRead: ScopeOwn},
		ResourceExpense:      {OpRead: ScopeOwn},
		ResourceFine:         {OpRead: ScopeOwn, OpList: ScopeAny},
		ResourcePayment:      {OpRead: ScopeOwn},
		ResourceReservation:  {OpRead: ScopeOwn, OpCreate: ScopeOwn, OpDelete: ScopeOwn},
		ResourceAnnouncement: {OpRead: ScopeAny, OpCreate: ScopeAny},
		ResourceDelinquency:  {OpList: ScopeAny},
	},
	RoleConcierge: {
		ResourceProfile:      {OpRead: ScopeOwn, OpUpdate: ScopeOwn},
		ResourceHousingUnit:  {OpRead: ScopeAny, OpList: ScopeAny},
		ResourceExpense:      {OpRead: ScopeAny, OpList: ScopeAny},
		ResourceFine:         {OpRead: ScopeAny, OpList: ScopeAny, OpCreate: ScopeAny},
		ResourcePayment:      {OpRead: ScopeAny, OpList: ScopeAny},
		ResourceReservation:  {OpRead: ScopeAny, OpList: ScopeAny, OpCreate: ScopeAny, OpDelete: ScopeAny},
		ResourceAnnouncement: {OpRead: ScopeAny},
		ResourceResident:     {OpRead: ScopeAny, OpList: ScopeAny},
		ResourceDelinquency:  {OpList: ScopeAny},
	},
	RoleAdministrator: unrestricted(),
	RoleSuperAdmin:    unrestricted(),
}

func unrestricted() grants {
	g := make(grants, len(ResourceTypes()))
	for _, res := range ResourceTypes() {
		ops := make(map[Operation]Scope, len(Operations()))
		for _, op := range Operations() {
			ops[op] = ScopeAny
		}
		g[res] = ops
	}
	return g
}

// Grant returns the scope role holds for op on res, ScopeNone when absent.
func Grant(role Role, res ResourceType, op Operation) Scope {
	return policy[role][res][op]
}
