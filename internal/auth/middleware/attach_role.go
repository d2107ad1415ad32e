package auth

import (
	"errors"
	"net/http"

	"github.com/quizdeck/quizdeck/internal/profile"
	"github.com/quizdeck/quizdeck/internal/rbac"
)

// AttachRoleFromProfile replaces the token's role claim with the role stored
// on the user's profile document when one exists. The profile is the
// mutable, authoritative role source; the claim is only a bootstrap until
// the first identify call creates the profile.
// allowClaimFallback=true in dev/offline; false in prod.
func AttachRoleFromProfile(profiles *profile.Service, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := rbac.SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			u, err := profiles.Get(ctx, sub)
			switch {
			case err == nil && u.Role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, u.Role)))

			case errors.Is(err, profile.ErrUserNotFound):
				if claimRole == "admin" || (allowClaimFallback && claimRole != "") {
					next.ServeHTTP(w, r) // keep whatever JWTMiddleware set
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)

			default:
				// Unknown store error: in dev, be lenient; in prod, deny.
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
