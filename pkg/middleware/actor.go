package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/walletd/pkg/contextkeys"
	"github.com/platinummonkey/walletd/pkg/httputil"
)

// Identity headers set by the upstream gateway after authentication.
const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"
)

// Roles recognised by the role gate.
const (
	RoleSuperAdmin = "super_admin"
	RoleMember     = "member"
)

// ActorMiddleware copies the gateway identity into the request context.
// Requests without an actor id are rejected with 401.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := strings.TrimSpace(r.Header.Get(ActorIDHeader))
		if actorID == "" {
			httputil.WriteUnauthorized(w, "missing "+ActorIDHeader+" header")
			return
		}
		role := strings.ToLower(strings.TrimSpace(r.Header.Get(ActorRoleHeader)))
		if role == "" {
			role = RoleMember
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithActor(r.Context(), actorID, role)))
	})
}

// RequireRole creates middleware that admits only actors holding role
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if contextkeys.GetActorID(r.Context()) == "" {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if contextkeys.GetActorRole(r.Context()) != role {
				httputil.WriteForbidden(w, "insufficient role permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsSuperAdmin reports whether the actor in ctx is a super admin.
func IsSuperAdmin(ctx context.Context) bool {
	return contextkeys.GetActorRole(ctx) == RoleSuperAdmin
}
