package http

import (
	"context"
	"net/http"
	"strconv"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/service"
)

type contextKey string

const actorKey contextKey = "actor"

// allowedRoles guards against arbitrary role strings in the header
var allowedRoles = map[domain.UserRole]bool{
	domain.UserRoleCustomer: true,
	domain.UserRoleCourier:  true,
	domain.UserRoleOperator: true,
	domain.UserRoleAdmin:    true,
}

// actorMiddleware extracts the authenticated caller from the identity headers
// set by the external auth layer. Requests without a valid identity never
// reach a handler.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idHeader := r.Header.Get("X-Actor-ID")
		roleHeader := r.Header.Get("X-Actor-Role")
		if idHeader == "" || roleHeader == "" {
			writeError(w, r, domain.Unauthenticated("error.auth.missing_identity"))
			return
		}

		actorID, err := strconv.ParseInt(idHeader, 10, 64)
		if err != nil || actorID <= 0 {
			writeError(w, r, domain.Unauthenticated("error.auth.invalid_identity"))
			return
		}

		role := domain.UserRole(roleHeader)
		if !allowedRoles[role] {
			writeError(w, r, domain.Unauthenticated("error.auth.invalid_role"))
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, service.Actor{ID: actorID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the caller identity placed in the context by
// actorMiddleware
func actorFrom(ctx context.Context) service.Actor {
	actor, _ := ctx.Value(actorKey).(service.Actor)
	return actor
}
