// Package gate is the request-gating core: it sequences deny/allow list
// checks, rate limiting with abuse escalation, identity resolution and
// authorization into one composite decision per request.
package gate

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/authz"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/ratelimit"
)

// Requirement describes what one route demands before its handler runs.
type Requirement struct {
	// CredentialRequired rejects requests without a bearer credential.
	CredentialRequired bool
	// RequireVerified additionally demands a verified account.
	RequireVerified bool
	// ActivityClass buckets the route for rate limiting ("api" when empty).
	ActivityClass string

	Permissions       []authz.Permission
	RequireAll        bool
	Roles             []identity.Role
	AllowOwnerAccess  bool
	SkipForSuperAdmin bool
}

func (r Requirement) class() string {
	if r.ActivityClass == "" {
		return "api"
	}
	return r.ActivityClass
}

func (r Requirement) authzRequirement() authz.Requirement {
	return authz.Requirement{
		Permissions:       r.Permissions,
		RequireAll:        r.RequireAll,
		Roles:             r.Roles,
		AllowOwnerAccess:  r.AllowOwnerAccess,
		SkipForSuperAdmin: r.SkipForSuperAdmin,
	}
}

func (r Requirement) needsIdentity() bool {
	return r.CredentialRequired || r.RequireVerified || len(r.Permissions) > 0 || len(r.Roles) > 0
}

// CheckInput carries the per-request facts the gate decides on.
type CheckInput struct {
	Credential string
	IP         string
	Path       string
	Resource   authz.ResourceContext
}

// Decision is the composite outcome consumed by the request pipeline.
type Decision struct {
	Allowed    bool
	Code       Code
	Status     int
	Reason     string
	RetryAfter time.Duration
	Missing    []authz.Permission
	Principal  *identity.Principal
}

func allowed(principal *identity.Principal) Decision {
	return Decision{Allowed: true, Principal: principal}
}

func rejected(code Code, reason string) Decision {
	return Decision{Allowed: false, Code: code, Status: StatusForCode(code), Reason: reason}
}

// SubjectResolver resolves a verified subject id to a principal and
// reports activity best-effort.
type SubjectResolver interface {
	Resolve(ctx context.Context, subjectID string) (identity.Principal, error)
	MarkActivity(subjectID string)
}

// Gate sequences the full per-request decision. It owns no global state;
// every collaborator is injected so tests construct gates in isolation.
type Gate struct {
	verifier  identity.ClaimVerifier
	directory SubjectResolver
	engine    *authz.Engine
	store     *ratelimit.Store
	limits    *ratelimit.LimitTable
	detector  *ratelimit.Detector
	lists     *ratelimit.IPLists
	logger    *slog.Logger
	excluded  map[string]struct{}
	clock     func() time.Time
	observer  func(code Code)
}

// Config collects the gate's collaborators.
type Config struct {
	Verifier      identity.ClaimVerifier
	Directory     SubjectResolver
	Engine        *authz.Engine
	Store         *ratelimit.Store
	Limits        *ratelimit.LimitTable
	Detector      *ratelimit.Detector
	Lists         *ratelimit.IPLists
	Logger        *slog.Logger
	ExcludedPaths []string
	Clock         func() time.Time
	// Observer, when set, is invoked once per decision with the rejection
	// code, or "allowed".
	Observer func(code Code)
}

// New constructs a Gate.
func New(cfg Config) *Gate {
	excluded := make(map[string]struct{}, len(cfg.ExcludedPaths))
	for _, p := range cfg.ExcludedPaths {
		excluded[p] = struct{}{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		verifier:  cfg.Verifier,
		directory: cfg.Directory,
		engine:    cfg.Engine,
		store:     cfg.Store,
		limits:    cfg.Limits,
		detector:  cfg.Detector,
		lists:     cfg.Lists,
		logger:    cfg.Logger,
		excluded:  excluded,
		clock:     clock,
		observer:  cfg.Observer,
	}
}

// Check runs the gate for one request. A panic in any step is recovered
// into an INTERNAL_ERROR rejection for that request only; the gate stays
// valid for subsequent requests.
func (g *Gate) Check(ctx context.Context, in CheckInput, req Requirement) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			if g.logger != nil {
				g.logger.Error("gate panic",
					slog.Any("panic", r),
					slog.String("path", in.Path),
					slog.String("stack", string(debug.Stack())))
			}
			decision = rejected(CodeInternalError, "internal fault")
		}
		if g.observer != nil {
			code := "allowed"
			if !decision.Allowed {
				code = string(decision.Code)
			}
			g.observer(Code(code))
		}
	}()

	if _, ok := g.excluded[in.Path]; ok {
		return allowed(nil)
	}

	// List checks come first: the denylist rejects outright, the allowlist
	// is an operational escape hatch bypassing everything else.
	if g.lists.Denied(in.IP) {
		return rejected(CodeIPBlocked, "network identity blocked")
	}
	if g.lists.Allowed(in.IP) {
		return allowed(nil)
	}

	// Identity is resolved eagerly so the limit row matches the caller's
	// role, but identity failures are reported only after the rate check:
	// an over-limit request is a 429 even when its token is bad.
	principal, identCode := g.resolveIdentity(ctx, in.Credential, req)

	role := ratelimit.Anonymous
	keyIdentity := in.IP
	if principal != nil {
		role = principal.Role
		keyIdentity = principal.SubjectID
	}
	limit := g.limits.For(role)
	key := ratelimit.Key{Role: role, Identity: keyIdentity, Class: req.class()}
	entry := g.store.Record(key, limit.Window)
	g.detector.Observe(entry, limit, in.IP)

	if ratelimit.Exceeded(entry, limit) {
		g.store.RecordBlocked(key)
		retry := ratelimit.RetryAfter(entry, limit.Window, g.clock())
		d := rejected(CodeRateLimitExceeded, "rate limit exceeded")
		d.RetryAfter = retry
		return d
	}

	if identCode != "" {
		return rejected(identCode, "identity could not be established")
	}

	if principal == nil {
		if req.needsIdentity() {
			return rejected(CodeNoToken, "credential required")
		}
		return allowed(nil)
	}

	if !principal.Active() {
		return rejected(CodeInsufficientPerms, "account not active")
	}
	if req.RequireVerified && !principal.IsVerified {
		return rejected(CodeInsufficientPerms, "account not verified")
	}

	authzDecision := g.engine.Decide(ctx, *principal, req.authzRequirement(), in.Resource)
	if !authzDecision.Allowed {
		d := rejected(CodeInsufficientPerms, authzDecision.Reason)
		d.Missing = authzDecision.Missing
		return d
	}

	g.directory.MarkActivity(principal.SubjectID)
	return allowed(principal)
}

func (g *Gate) resolveIdentity(ctx context.Context, credential string, req Requirement) (*identity.Principal, Code) {
	if credential == "" {
		if req.CredentialRequired {
			return nil, CodeNoToken
		}
		return nil, ""
	}
	subject, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, CodeInvalidToken
	}
	principal, err := g.directory.Resolve(ctx, subject.SubjectID)
	if err != nil {
		return nil, CodeUserNotFound
	}
	return &principal, ""
}

// Lists exposes the deny/allow lists for the administrative surface.
func (g *Gate) Lists() *ratelimit.IPLists {
	return g.lists
}

// Stats exposes aggregate usage counters.
func (g *Gate) Stats() ratelimit.UsageStats {
	return g.store.Stats()
}

// SuspiciousActivities returns recent abuse records, optionally filtered.
func (g *Gate) SuspiciousActivities(severity ratelimit.Severity) []ratelimit.SuspiciousActivityRecord {
	return g.detector.Activities(severity)
}
