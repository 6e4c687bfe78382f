package middleware

import (
	"net/http"
	"strings"

	"github.com/casetrail/casetrail/userctx"
)

// RequestMetadata captures the client IP and user agent into the request
// context, where services pick them up when emitting audit events. The
// middleware itself writes nothing to the ledger: audit entries are emitted
// synchronously by the services performing the operation, under the
// per-event-class failure policy, never fire-and-forget from here.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = userctx.SetClientIP(ctx, getIPAddress(r))
		ctx = userctx.SetUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getIPAddress extracts IP address from request, checking X-Forwarded-For first
func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header (proxy/load balancer)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take first IP if multiple
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	// Check X-Real-IP header
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	// Remove port if present
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
