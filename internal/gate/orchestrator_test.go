package gate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/authz"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/gate"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/ratelimit"
)

type stubVerifier struct {
	subjects map[string]identity.Subject
	panics   bool
}

func (s *stubVerifier) Verify(ctx context.Context, credential string) (identity.Subject, error) {
	if s.panics {
		panic("verifier exploded")
	}
	subject, ok := s.subjects[credential]
	if !ok {
		return identity.Subject{}, identity.ErrInvalidCredential
	}
	return subject, nil
}

type stubDirectory struct {
	mu         sync.Mutex
	principals map[string]identity.Principal
	activity   []string
}

func (s *stubDirectory) Resolve(ctx context.Context, subjectID string) (identity.Principal, error) {
	p, ok := s.principals[subjectID]
	if !ok {
		return identity.Principal{}, context.DeadlineExceeded
	}
	return p, nil
}

func (s *stubDirectory) MarkActivity(subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, subjectID)
}

type stubGrants struct {
	grant *authz.DynamicGrant
}

func (s *stubGrants) Resolve(ctx context.Context, subjectID string) (*authz.DynamicGrant, error) {
	return s.grant, nil
}

type fixture struct {
	gate     *gate.Gate
	clock    *fakeClock
	lists    *ratelimit.IPLists
	verifier *stubVerifier
	dir      *stubDirectory
	grants   *stubGrants
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	lists := ratelimit.NewIPLists()
	store := ratelimit.NewStore(clock.Now)
	limits, err := ratelimit.NewLimitTable(map[identity.Role]ratelimit.Limit{
		ratelimit.Anonymous:               {Window: 15 * time.Minute, MaxRequests: 20},
		identity.RoleNewUser:              {Window: 15 * time.Minute, MaxRequests: 30},
		identity.RolePhotographer:         {Window: 15 * time.Minute, MaxRequests: 50},
		identity.RoleBrandCoordinator:     {Window: 15 * time.Minute, MaxRequests: 50},
		identity.RoleMarketingCoordinator: {Window: 15 * time.Minute, MaxRequests: 80},
		identity.RoleSuperAdmin:           {Window: 15 * time.Minute, MaxRequests: 100},
	})
	require.NoError(t, err)

	verifier := &stubVerifier{subjects: map[string]identity.Subject{
		"good-token": {SubjectID: "user-1"},
		"lost-token": {SubjectID: "no-such-user"},
	}}
	dir := &stubDirectory{principals: map[string]identity.Principal{
		"user-1": {
			SubjectID:  "user-1",
			Role:       identity.RolePhotographer,
			Status:     identity.StatusActive,
			IsVerified: true,
		},
	}}
	grants := &stubGrants{}

	g := gate.New(gate.Config{
		Verifier:      verifier,
		Directory:     dir,
		Engine:        authz.NewEngine(grants, nil),
		Store:         store,
		Limits:        limits,
		Detector:      ratelimit.NewDetector(lists, 24*time.Hour, nil, clock.Now),
		Lists:         lists,
		Logger:        nil,
		ExcludedPaths: []string{"/healthz"},
		Clock:         clock.Now,
	})
	return &fixture{gate: g, clock: clock, lists: lists, verifier: verifier, dir: dir, grants: grants}
}

func anonInput(ip string) gate.CheckInput {
	return gate.CheckInput{IP: ip, Path: "/api/content"}
}

func authedInput(credential, ip string) gate.CheckInput {
	return gate.CheckInput{Credential: credential, IP: ip, Path: "/api/content"}
}

func TestExcludedPathBypasses(t *testing.T) {
	f := newFixture(t)
	decision := f.gate.Check(context.Background(),
		gate.CheckInput{IP: "203.0.113.1", Path: "/healthz"},
		gate.Requirement{CredentialRequired: true})
	require.True(t, decision.Allowed)
	require.Nil(t, decision.Principal)
}

func TestDenylistRejectsFirst(t *testing.T) {
	f := newFixture(t)
	f.lists.AddDeny("203.0.113.1")

	decision := f.gate.Check(context.Background(), authedInput("good-token", "203.0.113.1"), gate.Requirement{})
	require.False(t, decision.Allowed)
	require.Equal(t, gate.CodeIPBlocked, decision.Code)
	require.Equal(t, http.StatusTooManyRequests, decision.Status)
}

func TestAllowlistBypassesEverything(t *testing.T) {
	f := newFixture(t)
	f.lists.AddAllow("203.0.113.1")

	// A volume far past any limit, with no credential, against a route that
	// demands permissions: every request still passes.
	req := gate.Requirement{
		CredentialRequired: true,
		Permissions:        []authz.Permission{authz.PermPaymentsManage},
		RequireAll:         true,
	}
	for i := 0; i < 100; i++ {
		decision := f.gate.Check(context.Background(), anonInput("203.0.113.1"), req)
		require.True(t, decision.Allowed)
	}
}

func TestAnonymousFixedWindow(t *testing.T) {
	f := newFixture(t)

	// 20 requests in 10 minutes all pass.
	for i := 0; i < 20; i++ {
		decision := f.gate.Check(context.Background(), anonInput("203.0.113.1"), gate.Requirement{})
		require.True(t, decision.Allowed, "request %d", i+1)
		f.clock.Advance(30 * time.Second)
	}

	// Request 21 at the 10 minute mark is rejected with ~300s retry-after.
	decision := f.gate.Check(context.Background(), anonInput("203.0.113.1"), gate.Requirement{})
	require.False(t, decision.Allowed)
	require.Equal(t, gate.CodeRateLimitExceeded, decision.Code)
	require.Equal(t, 5*time.Minute, decision.RetryAfter)

	// After the window rolls over the counter is fresh.
	f.clock.Advance(5*time.Minute + time.Second)
	decision = f.gate.Check(context.Background(), anonInput("203.0.113.1"), gate.Requirement{})
	require.True(t, decision.Allowed)
}

func TestRateLimitPrecedesInvalidToken(t *testing.T) {
	f := newFixture(t)

	// Exhaust the anonymous row with a bad token; the final rejection must
	// be the rate limit, not the credential.
	var decision gate.Decision
	for i := 0; i < 21; i++ {
		decision = f.gate.Check(context.Background(), authedInput("bad-token", "203.0.113.1"), gate.Requirement{})
	}
	require.False(t, decision.Allowed)
	require.Equal(t, gate.CodeRateLimitExceeded, decision.Code)
}

func TestIdentityRejections(t *testing.T) {
	f := newFixture(t)
	req := gate.Requirement{CredentialRequired: true}

	missing := f.gate.Check(context.Background(), anonInput("203.0.113.1"), req)
	require.Equal(t, gate.CodeNoToken, missing.Code)
	require.Equal(t, http.StatusUnauthorized, missing.Status)

	invalid := f.gate.Check(context.Background(), authedInput("bad-token", "203.0.113.2"), req)
	require.Equal(t, gate.CodeInvalidToken, invalid.Code)

	unresolved := f.gate.Check(context.Background(), authedInput("lost-token", "203.0.113.3"), req)
	require.Equal(t, gate.CodeUserNotFound, unresolved.Code)
}

func TestAuthorizedRequestAttachesPrincipal(t *testing.T) {
	f := newFixture(t)

	decision := f.gate.Check(context.Background(), authedInput("good-token", "203.0.113.1"), gate.Requirement{
		CredentialRequired: true,
		Permissions:        []authz.Permission{authz.PermContentWrite},
		RequireAll:         true,
	})
	require.True(t, decision.Allowed)
	require.NotNil(t, decision.Principal)
	require.Equal(t, "user-1", decision.Principal.SubjectID)

	// Activity write-through fired for the resolved subject.
	require.Eventually(t, func() bool {
		f.dir.mu.Lock()
		defer f.dir.mu.Unlock()
		return len(f.dir.activity) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestInsufficientPermissionsListsMissing(t *testing.T) {
	f := newFixture(t)

	decision := f.gate.Check(context.Background(), authedInput("good-token", "203.0.113.1"), gate.Requirement{
		CredentialRequired: true,
		Permissions:        []authz.Permission{authz.PermContentApprove},
		RequireAll:         true,
	})
	require.False(t, decision.Allowed)
	require.Equal(t, gate.CodeInsufficientPerms, decision.Code)
	require.Equal(t, http.StatusForbidden, decision.Status)
	require.Equal(t, []authz.Permission{authz.PermContentApprove}, decision.Missing)
}

func TestSuspendedAccountRejected(t *testing.T) {
	f := newFixture(t)
	f.dir.principals["user-1"] = identity.Principal{
		SubjectID: "user-1",
		Role:      identity.RolePhotographer,
		Status:    identity.StatusSuspended,
	}

	decision := f.gate.Check(context.Background(), authedInput("good-token", "203.0.113.1"),
		gate.Requirement{CredentialRequired: true})
	require.False(t, decision.Allowed)
	require.Equal(t, gate.CodeInsufficientPerms, decision.Code)
	require.Contains(t, decision.Reason, "not active")
}

func TestUnverifiedAccountRejectedWhenRequired(t *testing.T) {
	f := newFixture(t)
	f.dir.principals["user-1"] = identity.Principal{
		SubjectID: "user-1",
		Role:      identity.RolePhotographer,
		Status:    identity.StatusActive,
	}

	decision := f.gate.Check(context.Background(), authedInput("good-token", "203.0.113.1"),
		gate.Requirement{CredentialRequired: true, RequireVerified: true})
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "not verified")
}

func TestCriticalEscalationDenylists(t *testing.T) {
	f := newFixture(t)

	// Push the anonymous counter to twice its limit; requests past the
	// limit are rejected but still counted.
	var sawBlocked bool
	for i := 0; i < 45; i++ {
		decision := f.gate.Check(context.Background(), anonInput("203.0.113.1"), gate.Requirement{})
		if decision.Code == gate.CodeIPBlocked {
			sawBlocked = true
			break
		}
	}
	require.True(t, sawBlocked, "identity must end up denylisted")
	require.True(t, f.lists.Denied("203.0.113.1"))

	records := f.gate.SuspiciousActivities(ratelimit.SeverityCritical)
	require.NotEmpty(t, records)

	// The denylist survives the window rolling over.
	f.clock.Advance(time.Hour)
	decision := f.gate.Check(context.Background(), anonInput("203.0.113.1"), gate.Requirement{})
	require.Equal(t, gate.CodeIPBlocked, decision.Code)

	// Only the explicit administrative removal restores access.
	require.True(t, f.lists.RemoveDeny("203.0.113.1"))
	decision = f.gate.Check(context.Background(), anonInput("203.0.113.1"), gate.Requirement{})
	require.True(t, decision.Allowed)
}

func TestDynamicGrantEscalation(t *testing.T) {
	f := newFixture(t)
	f.dir.principals["user-2"] = identity.Principal{
		SubjectID:  "user-2",
		Role:       identity.RoleBrandCoordinator,
		Status:     identity.StatusActive,
		IsVerified: true,
	}
	f.verifier.subjects["coord-token"] = identity.Subject{SubjectID: "user-2"}
	f.grants.grant = &authz.DynamicGrant{
		SubjectID: "user-2",
		ScopeID:   "brand-x",
		Active:    true,
		Flags:     map[authz.CapabilityFlag]bool{authz.CapManageBrands: true},
	}

	in := authedInput("coord-token", "203.0.113.1")
	in.Resource = authz.ResourceContext{ScopeID: "brand-x"}
	decision := f.gate.Check(context.Background(), in, gate.Requirement{
		CredentialRequired: true,
		Permissions:        []authz.Permission{authz.PermBrandsApprove},
		RequireAll:         true,
	})
	require.True(t, decision.Allowed)
}

func TestPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)
	f.verifier.panics = true

	decision := f.gate.Check(context.Background(), authedInput("good-token", "203.0.113.1"),
		gate.Requirement{CredentialRequired: true})
	require.False(t, decision.Allowed)
	require.Equal(t, gate.CodeInternalError, decision.Code)
	require.Equal(t, http.StatusInternalServerError, decision.Status)

	// The gate itself stays healthy for the next request.
	f.verifier.panics = false
	decision = f.gate.Check(context.Background(), authedInput("good-token", "203.0.113.2"),
		gate.Requirement{CredentialRequired: true})
	require.True(t, decision.Allowed)
}

func TestMiddlewareRejectsAndAllows(t *testing.T) {
	f := newFixture(t)
	var gotPrincipal *identity.Principal
	handler := f.gate.Middleware(gate.Requirement{
		CredentialRequired: true,
		Permissions:        []authz.Permission{authz.PermContentWrite},
		RequireAll:         true,
	}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := gate.PrincipalFromContext(r.Context()); ok {
			gotPrincipal = &p
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	// Without a credential: 401 with the stable code in the body.
	req := httptest.NewRequest(http.MethodGet, "/api/content", nil)
	req.RemoteAddr = "203.0.113.1:51234"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), string(gate.CodeNoToken))

	// With a good bearer token the handler runs with the principal attached.
	req = httptest.NewRequest(http.MethodGet, "/api/content", nil)
	req.RemoteAddr = "203.0.113.1:51234"
	req.Header.Set("Authorization", "Bearer good-token")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.NotNil(t, gotPrincipal)
	require.Equal(t, "user-1", gotPrincipal.SubjectID)
}

func TestMiddlewareSetsRetryAfterHeader(t *testing.T) {
	f := newFixture(t)
	handler := f.gate.Middleware(gate.Requirement{}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	var res *httptest.ResponseRecorder
	for i := 0; i < 21; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/content", nil)
		req.RemoteAddr = "203.0.113.1:51234"
		res = httptest.NewRecorder()
		handler.ServeHTTP(res, req)
	}
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.NotEmpty(t, res.Header().Get("Retry-After"))
}
