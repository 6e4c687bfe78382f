package middleware

import (
	"net/http"

	"github.com/casetrail/casetrail/userctx"
)

// UserIDHeader carries the already-authenticated user identity, set by the
// upstream authentication gateway. Authentication itself lives outside this
// service; by the time a request arrives here the identity is trusted.
const UserIDHeader = "X-User-ID"

// RequireUser ensures the request carries an authenticated identity and
// adds it to the request context for handlers and audit events.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			http.Error(w, `{"error": "authentication required"}`, http.StatusUnauthorized)
			return
		}

		ctx := userctx.SetUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
