package auth

import (
	"context"
	"slices"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

type principalKey struct{}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the principal carries role, ignoring case.
func (p Principal) HasRole(role string) bool {
	return slices.ContainsFunc(p.Roles, func(r string) bool { return strings.EqualFold(r, role) })
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the authentication middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// PrincipalFromToken reads the subject and the roles of a verified token.
// Roles come from a top level "roles" claim or from Keycloak's "realm_access.roles".
func PrincipalFromToken(token jwt.Token) (Principal, bool) {
	subject, ok := token.Subject()
	if !ok || subject == "" {
		return Principal{}, false
	}
	p := Principal{Subject: subject}

	var roles any
	if err := token.Get("roles", &roles); err == nil {
		p.Roles = append(p.Roles, toStrings(roles)...)
	}
	var realm map[string]any
	if err := token.Get("realm_access", &realm); err == nil {
		p.Roles = append(p.Roles, toStrings(realm["roles"])...)
	}
	return p, true
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(list)
	default:
		return nil
	}
}
