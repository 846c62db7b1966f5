package identity

import "time"

// Role is one of the fixed Depth Studio account roles.
type Role string

const (
	RoleSuperAdmin           Role = "super_admin"
	RoleMarketingCoordinator Role = "marketing_coordinator"
	RoleBrandCoordinator     Role = "brand_coordinator"
	RolePhotographer         Role = "photographer"
	RoleNewUser              Role = "new_user"
)

// Roles returns every role in the enumeration.
func Roles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleMarketingCoordinator,
		RoleBrandCoordinator,
		RolePhotographer,
		RoleNewUser,
	}
}

// Valid reports whether r is a member of the role enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleMarketingCoordinator, RoleBrandCoordinator, RolePhotographer, RoleNewUser:
		return true
	}
	return false
}

// AccountStatus describes the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusPending   AccountStatus = "pending"
	StatusArchived  AccountStatus = "archived"
)

// Principal is the resolved identity for one request. It is built fresh
// per request and never mutated afterwards.
type Principal struct {
	SubjectID  string
	Role       Role
	Status     AccountStatus
	IsVerified bool
	Email      string
	ResolvedAt time.Time
}

// Active reports whether the account may act at all.
func (p Principal) Active() bool {
	return p.Status == StatusActive
}

// Subject is the output of credential verification: a stable subject id
// plus the claims carried by the credential.
type Subject struct {
	SubjectID string
	Claims    map[string]string
	ExpiresAt time.Time
}
