package authz

import (
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

// Permission is an atomic capability token drawn from a closed vocabulary.
// The vocabulary is fixed at build time; an unknown token is a programming
// error, not a runtime case.
type Permission string

const (
	PermContentRead     Permission = "content:read"
	PermContentWrite    Permission = "content:write"
	PermContentApprove  Permission = "content:approve"
	PermBrandsRead      Permission = "brands:read"
	PermBrandsManage    Permission = "brands:manage"
	PermBrandsApprove   Permission = "brands:approve"
	PermCampaignsRead   Permission = "campaigns:read"
	PermCampaignsManage Permission = "campaigns:manage"
	PermPaymentsRead    Permission = "payments:read"
	PermPaymentsManage  Permission = "payments:manage"
	PermEquipmentRead   Permission = "equipment:read"
	PermEquipmentManage Permission = "equipment:manage"
	PermUsersRead       Permission = "users:read"
	PermUsersManage     Permission = "users:manage"
	PermReportsView     Permission = "reports:view"
)

// Permissions returns the full vocabulary.
func Permissions() []Permission {
	return []Permission{
		PermContentRead, PermContentWrite, PermContentApprove,
		PermBrandsRead, PermBrandsManage, PermBrandsApprove,
		PermCampaignsRead, PermCampaignsManage,
		PermPaymentsRead, PermPaymentsManage,
		PermEquipmentRead, PermEquipmentManage,
		PermUsersRead, PermUsersManage,
		PermReportsView,
	}
}

// PermissionSet is a set of permissions with value semantics on lookup.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Missing returns the members of required absent from s, in the order given.
func (s PermissionSet) Missing(required []Permission) []Permission {
	var missing []Permission
	for _, p := range required {
		if !s.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// HasAny reports whether at least one required permission is present.
func (s PermissionSet) HasAny(required []Permission) bool {
	for _, p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// rolePermissions is the static role baseline. It is total over the role
// enumeration and immutable after process start; changing it requires a
// rebuild.
var rolePermissions = map[identity.Role]PermissionSet{
	identity.RoleSuperAdmin: NewPermissionSet(Permissions()...),
	identity.RoleMarketingCoordinator: NewPermissionSet(
		PermContentRead, PermContentWrite, PermContentApprove,
		PermBrandsRead, PermCampaignsRead, PermCampaignsManage,
		PermEquipmentRead, PermReportsView, PermUsersRead,
	),
	identity.RoleBrandCoordinator: NewPermissionSet(
		PermContentRead, PermContentApprove,
		PermBrandsRead, PermBrandsManage,
		PermCampaignsRead, PermReportsView,
	),
	identity.RolePhotographer: NewPermissionSet(
		PermContentRead, PermContentWrite,
		PermCampaignsRead, PermEquipmentRead,
	),
	identity.RoleNewUser: NewPermissionSet(),
}

// RolePermissions returns the baseline permission set for the role. The
// lookup is total: every enumerated role has a defined, possibly empty set.
func RolePermissions(role identity.Role) PermissionSet {
	if set, ok := rolePermissions[role]; ok {
		return set
	}
	return NewPermissionSet()
}
