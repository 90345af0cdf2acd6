package router

import (
	"net/http"
	"strings"

	"github.com/moleary1107/etownz-grants-sub007/internal/identity"
)

const devUserHeader = "X-User-Id"

// requireDevUser trusts the X-User-Id header as the caller's identity. It is
// only mounted outside production when no JWT secret is configured.
func requireDevUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(devUserHeader))
		if userID == "" {
			http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), userID)))
	})
}
