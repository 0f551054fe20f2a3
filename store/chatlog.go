package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

var _ contractx.ConversationStore = (*Store)(nil)

// GetOrCreateSession returns the open session for a channel chat id,
// creating one when none exists.
func (s *Store) GetOrCreateSession(ctx context.Context, channel, externalChatID string) (int64, error) {
	var session ChatSession
	err := s.db.NewSelect().
		Model(&session).
		Where("channel = ?", channel).
		Where("external_chat_id = ?", externalChatID).
		Where("ended_at IS NULL").
		OrderExpr("started_at DESC").
		Limit(1).
		Scan(ctx)
	if err == nil {
		return session.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: select session: %v", contractx.ErrTransport, err)
	}

	session = ChatSession{Channel: channel, ExternalChatID: externalChatID}
	if _, err := s.db.NewInsert().Model(&session).Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: insert session: %v", contractx.ErrTransport, err)
	}
	return session.ID, nil
}

// LinkCustomer attaches a customer to the open session of a chat, once. The
// link is what makes the recent-orders lookup resolve for that chat.
func (s *Store) LinkCustomer(ctx context.Context, channel, externalChatID string, customerID int64) error {
	_, err := s.db.NewUpdate().
		Model((*ChatSession)(nil)).
		Set("customer_id = ?", customerID).
		Where("channel = ?", channel).
		Where("external_chat_id = ?", externalChatID).
		Where("ended_at IS NULL").
		Where("customer_id IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: link session customer: %v", contractx.ErrTransport, err)
	}
	return nil
}

func (s *Store) LogMessage(ctx context.Context, entry contractx.LogEntry) error {
	msg := &ChatMessage{
		SessionID: entry.SessionID,
		Role:      string(entry.Role),
		Content:   entry.Content,
		ToolName:  entry.ToolName,
		ToolArgs:  entry.ToolArgs,
	}
	if _, err := s.db.NewInsert().Model(msg).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert chat message: %v", contractx.ErrTransport, err)
	}
	return nil
}

// History returns the last limit user/assistant entries of a session in
// chronological order, the context window replayed to the provider.
func (s *Store) History(ctx context.Context, sessionID int64, limit int) ([]contractx.HistoryMessage, error) {
	var messages []ChatMessage
	err := s.db.NewSelect().
		Model(&messages).
		Column("cm.role", "cm.content").
		Where("session_id = ?", sessionID).
		Where("role IN (?, ?)", string(contractx.RoleUser), string(contractx.RoleAssistant)).
		OrderExpr("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: select history: %v", contractx.ErrTransport, err)
	}

	history := make([]contractx.HistoryMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		history = append(history, contractx.HistoryMessage{
			Role:    contractx.Role(messages[i].Role),
			Content: messages[i].Content,
		})
	}
	return history, nil
}
