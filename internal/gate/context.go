package gate

import (
	"context"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context for
// downstream handlers.
func ContextWithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal placed by the gate.
func PrincipalFromContext(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(identity.Principal)
	return p, ok
}
