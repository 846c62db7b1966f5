package ratelimit

import (
	"fmt"
	"time"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

// Anonymous is the pseudo-role applied to unauthenticated callers.
const Anonymous identity.Role = "anonymous"

// Limit is one rate-limit row: at most MaxRequests per fixed Window.
type Limit struct {
	Window      time.Duration
	MaxRequests int
}

// LimitTable maps every role, plus Anonymous, to its limit row. The table
// is fixed at process start.
type LimitTable struct {
	rows map[identity.Role]Limit
}

// DefaultLimits returns the production limit rows.
func DefaultLimits() map[identity.Role]Limit {
	return map[identity.Role]Limit{
		Anonymous:                         {Window: 15 * time.Minute, MaxRequests: 20},
		identity.RoleNewUser:              {Window: 15 * time.Minute, MaxRequests: 60},
		identity.RolePhotographer:         {Window: 15 * time.Minute, MaxRequests: 300},
		identity.RoleBrandCoordinator:     {Window: 15 * time.Minute, MaxRequests: 300},
		identity.RoleMarketingCoordinator: {Window: 15 * time.Minute, MaxRequests: 600},
		identity.RoleSuperAdmin:           {Window: 15 * time.Minute, MaxRequests: 1200},
	}
}

// NewLimitTable validates and builds a LimitTable. The rows must cover the
// Anonymous pseudo-role and every enumerated role, and the Anonymous row
// must be the strictest.
func NewLimitTable(rows map[identity.Role]Limit) (*LimitTable, error) {
	anon, ok := rows[Anonymous]
	if !ok {
		return nil, fmt.Errorf("ratelimit: missing row for %s", Anonymous)
	}
	if anon.Window <= 0 || anon.MaxRequests <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid row for %s", Anonymous)
	}
	for _, role := range identity.Roles() {
		row, ok := rows[role]
		if !ok {
			return nil, fmt.Errorf("ratelimit: missing row for role %s", role)
		}
		if row.Window <= 0 || row.MaxRequests <= 0 {
			return nil, fmt.Errorf("ratelimit: invalid row for role %s", role)
		}
		if anon.MaxRequests > row.MaxRequests {
			return nil, fmt.Errorf("ratelimit: anonymous limit exceeds role %s", role)
		}
	}
	copied := make(map[identity.Role]Limit, len(rows))
	for role, row := range rows {
		copied[role] = row
	}
	return &LimitTable{rows: copied}, nil
}

// For returns the limit row for the role, falling back to the Anonymous
// row for unknown roles so the lookup stays total.
func (t *LimitTable) For(role identity.Role) Limit {
	if row, ok := t.rows[role]; ok {
		return row
	}
	return t.rows[Anonymous]
}
