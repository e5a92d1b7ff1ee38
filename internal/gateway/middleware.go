package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/models"
)

type ctxKey int

const identityKey ctxKey = iota

// requireAuth validates the Authorization bearer token and stores the
// resulting Identity in the request context.
func (gw *Gateway) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		ident, err := gw.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the authenticated Identity stored by requireAuth.
// Handlers behind requireAuth can assume it is present.
func identityFrom(r *http.Request) *auth.Identity {
	ident, _ := r.Context().Value(identityKey).(*auth.Identity)
	return ident
}

// requireStaff restricts a handler to the it and admin roles.
func (gw *Gateway) requireStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ident := identityFrom(r); ident == nil || !ident.Role.CanManageTickets() {
			writeError(w, http.StatusForbidden, "staff access required")
			return
		}
		next(w, r)
	}
}

// requireAdmin restricts a handler to the admin role.
func (gw *Gateway) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ident := identityFrom(r); ident == nil || ident.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}
