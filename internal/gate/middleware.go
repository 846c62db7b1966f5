package gate

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/authz"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/platform/httpx"
)

// ResourceExtractor populates the typed resource context from a request.
// The calling layer decides which route parameters or headers carry the
// owner and scope hints; the gate never inspects raw bodies itself.
type ResourceExtractor func(*http.Request) authz.ResourceContext

// Middleware returns a chi-compatible middleware enforcing the requirement
// before the wrapped handler runs. On success the resolved principal is
// attached to the request context.
func (g *Gate) Middleware(req Requirement, extract ResourceExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			in := CheckInput{
				Credential: BearerCredential(r),
				IP:         ClientIP(r),
				Path:       r.URL.Path,
			}
			if extract != nil {
				in.Resource = extract(r)
			}

			decision := g.Check(r.Context(), in, req)
			if !decision.Allowed {
				WriteRejection(w, decision)
				return
			}
			if decision.Principal != nil {
				r = r.WithContext(ContextWithPrincipal(r.Context(), *decision.Principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRejection renders a rejected decision as an RFC7807 problem with
// the stable code, retry-after and missing-permission diagnostics.
func WriteRejection(w http.ResponseWriter, decision Decision) {
	problem := httpx.ProblemDetail{
		Title:  http.StatusText(decision.Status),
		Status: decision.Status,
		Detail: decision.Reason,
		Code:   string(decision.Code),
	}
	if decision.RetryAfter > 0 {
		seconds := int(decision.RetryAfter.Seconds() + 0.5)
		if seconds < 1 {
			seconds = 1
		}
		problem.RetryAfter = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	for _, p := range decision.Missing {
		problem.Missing = append(problem.Missing, string(p))
	}
	httpx.ProblemDetailed(w, problem)
}

// BearerCredential extracts the bearer token from the Authorization header.
func BearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// ClientIP returns the caller's network identity. chi's RealIP middleware
// rewrites RemoteAddr from forwarding headers upstream of the gate.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
