package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

// Requirement describes what an operation demands from the caller.
type Requirement struct {
	// Permissions the caller must hold. With RequireAll every listed
	// permission is needed; otherwise one suffices.
	Permissions []Permission
	RequireAll  bool

	// Roles restricts the operation to the listed roles when non-empty.
	Roles []identity.Role

	// AllowOwnerAccess lets the resource owner through even without the
	// required permissions.
	AllowOwnerAccess bool

	// SkipForSuperAdmin short-circuits the whole check for super_admin.
	// The bypass is explicit and logged, never silent.
	SkipForSuperAdmin bool
}

// ResourceContext carries the typed per-request resource hints the calling
// layer extracted. The engine never inspects raw request bodies.
type ResourceContext struct {
	// OwnerID is the subject id owning the target resource, when known.
	OwnerID string
	// ScopeID is the tenant/brand scope the request targets, matched
	// against dynamic grant scopes.
	ScopeID string
}

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	Missing []Permission
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string, missing []Permission) Decision {
	return Decision{Allowed: false, Reason: reason, Missing: missing}
}

// Engine combines the role baseline, dynamic grants and resource ownership
// into allow/deny decisions.
type Engine struct {
	grants GrantResolver
	logger *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(grants GrantResolver, logger *slog.Logger) *Engine {
	return &Engine{grants: grants, logger: logger}
}

// Decide evaluates the requirement for the principal. It is pure apart
// from the single read through the grant resolver; a resolver failure is
// treated as "no grant found", never as allow.
func (e *Engine) Decide(ctx context.Context, principal identity.Principal, req Requirement, res ResourceContext) Decision {
	if req.SkipForSuperAdmin && principal.Role == identity.RoleSuperAdmin {
		if e.logger != nil {
			e.logger.Info("super admin bypass",
				slog.String("subject_id", principal.SubjectID))
		}
		return allow()
	}

	if len(req.Roles) > 0 && !roleIn(principal.Role, req.Roles) {
		return deny(fmt.Sprintf("role %q not in required set %v", principal.Role, req.Roles), nil)
	}

	if len(req.Permissions) == 0 {
		return allow()
	}

	baseline := RolePermissions(principal.Role)
	missing := baseline.Missing(req.Permissions)

	if req.RequireAll {
		if len(missing) == 0 {
			return allow()
		}
	} else if baseline.HasAny(req.Permissions) {
		return allow()
	}

	// Supplemental path: any missing permission satisfied by an active,
	// scope-matching dynamic grant allows the request outright. This is
	// any-of on purpose, independent of RequireAll; see DESIGN.md.
	if e.grantSatisfiesAny(ctx, principal.SubjectID, missing, res.ScopeID) {
		return allow()
	}

	if req.AllowOwnerAccess && res.OwnerID != "" && res.OwnerID == principal.SubjectID {
		return allow()
	}

	return deny("insufficient permissions", missing)
}

func (e *Engine) grantSatisfiesAny(ctx context.Context, subjectID string, missing []Permission, scopeID string) bool {
	if len(missing) == 0 || e.grants == nil {
		return false
	}
	grant, err := e.grants.Resolve(ctx, subjectID)
	if err != nil {
		// Fail closed: a resolver fault means no supplemental grant.
		if e.logger != nil {
			e.logger.Warn("grant resolution failed, denying supplement",
				slog.String("subject_id", subjectID), slog.Any("error", err))
		}
		return false
	}
	if grant == nil || !grant.Active {
		return false
	}
	if grant.ScopeID != "" && grant.ScopeID != scopeID {
		return false
	}
	for _, p := range missing {
		flag, ok := capabilityForPermission(p)
		if ok && grant.Grants(flag) {
			return true
		}
	}
	return false
}

func roleIn(role identity.Role, roles []identity.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
