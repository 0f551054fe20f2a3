package contract

import "context"

type (
	chatIDKey    struct{}
	sessionIDKey struct{}
)

// WithChatID tags the request context with the external chat id, so tool
// handlers reached through the provider loop can tie their side effects back
// to the conversation.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

// ChatIDFrom returns the external chat id set by WithChatID, or "".
func ChatIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(chatIDKey{}).(string)
	return id
}

// WithSessionID tags the request context with the chat session id.
func WithSessionID(ctx context.Context, sessionID int64) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFrom returns the session id set by WithSessionID, or 0.
func SessionIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(sessionIDKey{}).(int64)
	return id
}
