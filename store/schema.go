package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

// seedProducts is the four-SKU catalog the brand sells; stock levels are the
// initial warehouse load.
var seedProducts = []struct {
	Product Product
	Stock   int
}{
	{Product{SKU: "0_5L", Name: "AQUADOKS 0.5 л", Volume: "0.5 л", PackSize: 12, PricePerPack: 1000}, 120},
	{Product{SKU: "1L", Name: "AQUADOKS 1 л", Volume: "1 л", PackSize: 9, PricePerPack: 1250}, 100},
	{Product{SKU: "5L", Name: "AQUADOKS 5 л", Volume: "5 л", PackSize: 2, PricePerPack: 800}, 80},
	{Product{SKU: "19L", Name: "AQUADOKS 19 л", Volume: "19 л", PackSize: 1, PricePerPack: 1000}, 50},
}

// EnsureSchema creates every table if missing. Safe to run on each start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	models := []any{
		(*Product)(nil),
		(*Inventory)(nil),
		(*Customer)(nil),
		(*Order)(nil),
		(*OrderItem)(nil),
		(*ChatSession)(nil),
		(*ChatMessage)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("%w: create table for %T: %v", contractx.ErrTransport, model, err)
		}
	}
	return nil
}

// SeedCatalog inserts the product catalog and its inventory rows when the
// products table is empty.
func (s *Store) SeedCatalog(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*Product)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: count products: %v", contractx.ErrTransport, err)
	}
	if count > 0 {
		return nil
	}

	for _, seed := range seedProducts {
		product := seed.Product
		if _, err := s.db.NewInsert().Model(&product).Exec(ctx); err != nil {
			return fmt.Errorf("%w: seed product %s: %v", contractx.ErrTransport, product.SKU, err)
		}
		inv := &Inventory{ProductID: product.ID, StockPacks: seed.Stock}
		if _, err := s.db.NewInsert().Model(inv).Exec(ctx); err != nil {
			return fmt.Errorf("%w: seed inventory %s: %v", contractx.ErrTransport, product.SKU, err)
		}
	}
	log.Info().Int("products", len(seedProducts)).Msg("catalog seeded")
	return nil
}
