package logging

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	transportKey contextKey = "transport"
)

// WithSessionID adds a realtime session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithTransport adds the active transport mode (push, poll) to the context.
func WithTransport(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, transportKey, mode)
}

// GetSessionID retrieves the session ID from the context.
// Returns empty string if not present.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// GetTransport retrieves the transport mode from the context.
// Returns empty string if not present.
func GetTransport(ctx context.Context) string {
	if mode, ok := ctx.Value(transportKey).(string); ok {
		return mode
	}
	return ""
}
