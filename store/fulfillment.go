package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
	orderx "github.com/aquadoks/sales-agent/agent/order"
)

// InTx runs the fulfillment callback inside one database transaction. The
// callback's error aborts and rolls back the whole unit.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orderx.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &fulfillmentTx{db: tx})
	})
}

// fulfillmentTx implements orderx.Tx over a bun transaction.
type fulfillmentTx struct {
	db bun.IDB
}

var _ orderx.Tx = (*fulfillmentTx)(nil)

func (t *fulfillmentTx) CustomerByPhone(ctx context.Context, phone string) (orderx.Customer, error) {
	var c Customer
	err := t.db.NewSelect().Model(&c).Where("phone = ?", phone).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return orderx.Customer{}, fmt.Errorf("%w: customer phone=%s", contractx.ErrNotFound, phone)
	}
	if err != nil {
		return orderx.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return orderx.Customer{ID: c.ID, Name: c.Name, Phone: c.Phone, City: c.City}, nil
}

func (t *fulfillmentTx) CreateCustomer(ctx context.Context, c orderx.Customer) (int64, error) {
	model := &Customer{Name: c.Name, Phone: c.Phone, City: c.City}
	if _, err := t.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	return model.ID, nil
}

func (t *fulfillmentTx) ProductBySKU(ctx context.Context, sku string) (orderx.Product, error) {
	var p Product
	err := t.db.NewSelect().Model(&p).Where("sku = ?", sku).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return orderx.Product{}, fmt.Errorf("%w: sku=%s", contractx.ErrNotFound, sku)
	}
	if err != nil {
		return orderx.Product{}, fmt.Errorf("select product: %w", err)
	}
	return orderx.Product{ID: p.ID, SKU: p.SKU, PricePerPack: p.PricePerPack}, nil
}

func (t *fulfillmentTx) Availability(ctx context.Context, productID int64) (int, error) {
	var available int
	err := t.db.NewSelect().
		Model((*Inventory)(nil)).
		ColumnExpr("stock_packs - reserved_packs").
		Where("product_id = ?", productID).
		Scan(ctx, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: inventory product_id=%d", contractx.ErrNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("select availability: %w", err)
	}
	return available, nil
}

// TryReserve is the single mutual-exclusion point for stock: one guarded
// UPDATE whose predicate rejects the increment when it would exceed
// stock_packs. Success is decided by the affected-row count.
func (t *fulfillmentTx) TryReserve(ctx context.Context, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("%w: reserve qty must be positive", contractx.ErrValidation)
	}
	res, err := t.db.NewUpdate().
		Model((*Inventory)(nil)).
		Set("reserved_packs = reserved_packs + ?", qty).
		Set("updated_at = current_timestamp").
		Where("product_id = ?", productID).
		Where("reserved_packs + ? <= stock_packs", qty).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve stock rows: %w", err)
	}
	return affected == 1, nil
}

func (t *fulfillmentTx) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: release qty must be positive", contractx.ErrValidation)
	}
	res, err := t.db.NewUpdate().
		Model((*Inventory)(nil)).
		Set("reserved_packs = reserved_packs - ?", qty).
		Set("updated_at = current_timestamp").
		Where("product_id = ?", productID).
		Where("reserved_packs >= ?", qty).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release reservation rows: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("release of %d packs exceeds reservation for product_id=%d", qty, productID)
	}
	return nil
}

func (t *fulfillmentTx) CommitReservation(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: commit qty must be positive", contractx.ErrValidation)
	}
	res, err := t.db.NewUpdate().
		Model((*Inventory)(nil)).
		Set("stock_packs = stock_packs - ?", qty).
		Set("reserved_packs = reserved_packs - ?", qty).
		Set("updated_at = current_timestamp").
		Where("product_id = ?", productID).
		Where("reserved_packs >= ?", qty).
		Where("stock_packs >= ?", qty).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit reservation rows: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("commit of %d packs without matching reservation for product_id=%d", qty, productID)
	}
	return nil
}

func (t *fulfillmentTx) InsertOrder(ctx context.Context, draft orderx.Draft) (int64, error) {
	model := &Order{
		CustomerID:     draft.CustomerID,
		Channel:        draft.Channel,
		Status:         "pending",
		City:           draft.City,
		Address:        draft.Address,
		TotalAmount:    draft.TotalAmount,
		DiscountAmount: draft.DiscountAmount,
		FinalAmount:    draft.FinalAmount,
	}
	if _, err := t.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	items := make([]OrderItem, 0, len(draft.Items))
	for _, l := range draft.Items {
		items = append(items, OrderItem{
			OrderID:      model.ID,
			ProductID:    l.ProductID,
			SKU:          l.SKU,
			QtyPacks:     l.QtyPacks,
			PricePerPack: l.PricePerPack,
			Subtotal:     l.Subtotal,
		})
	}
	if _, err := t.db.NewInsert().Model(&items).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert order items: %w", err)
	}
	return model.ID, nil
}
