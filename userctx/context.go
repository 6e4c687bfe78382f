package userctx

import "context"

// Context key type
type contextKey string

const userIDKey contextKey = "user_id"
const clientIPKey contextKey = "client_ip"
const userAgentKey contextKey = "user_agent"

// SetUserID adds the authenticated user ID to the request context.
// The ID arrives already authenticated from the upstream identity layer;
// this package never verifies it.
func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetUserID retrieves the user ID from request context, or "" for
// unauthenticated/system flows.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// UserIDPtr returns the user ID as a nullable pointer, the shape audit
// events carry: nil for unauthenticated/system events.
func UserIDPtr(ctx context.Context) *string {
	if id := GetUserID(ctx); id != "" {
		return &id
	}
	return nil
}

// SetClientIP adds the request's client IP to the context
func SetClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPPtr retrieves the client IP as a nullable pointer; nil in
// non-networked flows (CLI, background jobs).
func ClientIPPtr(ctx context.Context) *string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return &ip
	}
	return nil
}

// SetUserAgent adds the request's user agent to the context
func SetUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

// UserAgentPtr retrieves the user agent as a nullable pointer.
func UserAgentPtr(ctx context.Context) *string {
	if ua, ok := ctx.Value(userAgentKey).(string); ok && ua != "" {
		return &ua
	}
	return nil
}
