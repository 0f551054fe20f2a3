package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

// CatalogEntry is a product joined with its live availability, the read-only
// projection the tool handlers render for the model.
type CatalogEntry struct {
	SKU          string `bun:"sku"`
	Name         string `bun:"name"`
	Volume       string `bun:"volume"`
	PackSize     int    `bun:"pack_size"`
	PricePerPack int64  `bun:"price_per_pack"`
	Available    int    `bun:"available"`
}

func (s *Store) ListProducts(ctx context.Context) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	err := s.db.NewSelect().
		Model((*Product)(nil)).
		Column("p.sku", "p.name", "p.volume", "p.pack_size", "p.price_per_pack").
		ColumnExpr("i.stock_packs - i.reserved_packs AS available").
		Join("JOIN inventory AS i ON i.product_id = p.id").
		OrderExpr("p.id").
		Scan(ctx, &entries)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %v", contractx.ErrTransport, err)
	}
	return entries, nil
}

func (s *Store) StockBySKU(ctx context.Context, sku string) (CatalogEntry, error) {
	var entry CatalogEntry
	err := s.db.NewSelect().
		Model((*Product)(nil)).
		Column("p.sku", "p.name", "p.volume", "p.pack_size", "p.price_per_pack").
		ColumnExpr("i.stock_packs - i.reserved_packs AS available").
		Join("JOIN inventory AS i ON i.product_id = p.id").
		Where("p.sku = ?", sku).
		Limit(1).
		Scan(ctx, &entry)
	if errors.Is(err, sql.ErrNoRows) {
		return CatalogEntry{}, fmt.Errorf("%w: sku=%s", contractx.ErrNotFound, sku)
	}
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("%w: stock by sku: %v", contractx.ErrTransport, err)
	}
	return entry, nil
}
