package contract

import "context"

// ConversationStore persists chat sessions and their message log.
type ConversationStore interface {
	GetOrCreateSession(ctx context.Context, channel, externalChatID string) (int64, error)
	LogMessage(ctx context.Context, entry LogEntry) error
	History(ctx context.Context, sessionID int64, limit int) ([]HistoryMessage, error)
}

// RawQuerier executes an ad-hoc SQL statement against the backing store.
// Reserved for the authenticated admin channel.
type RawQuerier interface {
	RawQuery(ctx context.Context, query string) (Rows, error)
}

// Rows is the result of a raw query: column order plus row maps for SELECT,
// or a bare status string for write statements.
type Rows struct {
	Columns []string
	Values  [][]any
	Status  string
}
