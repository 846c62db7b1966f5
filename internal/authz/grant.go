package authz

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CapabilityFlag names a boolean switch on a dynamic grant.
type CapabilityFlag string

const (
	CapApproveContent  CapabilityFlag = "can_approve_content"
	CapManageBrands    CapabilityFlag = "can_manage_brands"
	CapManageCampaigns CapabilityFlag = "can_manage_campaigns"
	CapViewReports     CapabilityFlag = "can_view_reports"
)

// DynamicGrant is a per-subject, scope-limited supplemental capability
// record. It only ever adds capability beyond the role baseline; it never
// narrows it. This core reads grants, it does not write them.
type DynamicGrant struct {
	SubjectID string
	ScopeID   string
	Active    bool
	Flags     map[CapabilityFlag]bool
}

// Grants reports whether the grant carries the flag.
func (g *DynamicGrant) Grants(flag CapabilityFlag) bool {
	return g != nil && g.Active && g.Flags[flag]
}

// capabilityForPermission maps a permission to the grant flag that can
// satisfy it. The switch is exhaustive over the vocabulary so that adding
// a permission without deciding its flag is visible at review time;
// permissions with no supplemental path return false.
func capabilityForPermission(p Permission) (CapabilityFlag, bool) {
	switch p {
	case PermContentApprove:
		return CapApproveContent, true
	case PermBrandsManage, PermBrandsApprove:
		return CapManageBrands, true
	case PermCampaignsManage:
		return CapManageCampaigns, true
	case PermReportsView:
		return CapViewReports, true
	case PermContentRead, PermContentWrite,
		PermBrandsRead, PermCampaignsRead,
		PermPaymentsRead, PermPaymentsManage,
		PermEquipmentRead, PermEquipmentManage,
		PermUsersRead, PermUsersManage:
		return "", false
	}
	return "", false
}

// GrantResolver resolves the supplemental grant for a subject. Absence is
// reported as (nil, nil).
type GrantResolver interface {
	Resolve(ctx context.Context, subjectID string) (*DynamicGrant, error)
}

// GrantStore reads dynamic grants from Postgres. It is read-through: the
// store never mutates grant rows, those belong to the administrative
// process that issues them.
type GrantStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// NewGrantStore constructs a GrantStore.
func NewGrantStore(pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) *GrantStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &GrantStore{pool: pool, timeout: timeout, logger: logger}
}

// Resolve fetches the grant for subjectID. A missing row is (nil, nil).
// The lookup is bounded by the configured timeout; exceeding it returns an
// error which callers treat as "no grant found".
func (s *GrantStore) Resolve(ctx context.Context, subjectID string) (*DynamicGrant, error) {
	const query = `
		SELECT subject_id, scope_id, active,
		       can_approve_content, can_manage_brands, can_manage_campaigns, can_view_reports
		FROM dynamic_grants
		WHERE subject_id = $1`

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var grant DynamicGrant
	var approveContent, manageBrands, manageCampaigns, viewReports bool
	err := s.pool.QueryRow(ctx, query, subjectID).Scan(
		&grant.SubjectID, &grant.ScopeID, &grant.Active,
		&approveContent, &manageBrands, &manageCampaigns, &viewReports,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if s.logger != nil {
			s.logger.Warn("dynamic grant lookup failed",
				slog.String("subject_id", subjectID), slog.Any("error", err))
		}
		return nil, err
	}

	grant.Flags = map[CapabilityFlag]bool{
		CapApproveContent:  approveContent,
		CapManageBrands:    manageBrands,
		CapManageCampaigns: manageCampaigns,
		CapViewReports:     viewReports,
	}
	return &grant, nil
}
