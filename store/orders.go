package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

// CustomerBySession resolves the customer behind a chat session, when one is
// linked. Used by the recent-orders lookup.
func (s *Store) CustomerBySession(ctx context.Context, channel, externalChatID string) (*Customer, error) {
	var c Customer
	err := s.db.NewSelect().
		Model(&c).
		Join("JOIN chat_sessions AS cs ON cs.customer_id = c.id").
		Where("cs.external_chat_id = ?", externalChatID).
		Where("cs.channel = ?", channel).
		OrderExpr("cs.started_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer for chat_id=%s", contractx.ErrNotFound, externalChatID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select customer by session: %v", contractx.ErrTransport, err)
	}
	return &c, nil
}

func (s *Store) RecentOrders(ctx context.Context, customerID int64, limit int) ([]Order, error) {
	var orders []Order
	err := s.db.NewSelect().
		Model(&orders).
		Where("customer_id = ?", customerID).
		OrderExpr("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: select recent orders: %v", contractx.ErrTransport, err)
	}
	return orders, nil
}
