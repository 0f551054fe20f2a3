package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

// Item is one requested order line, as it arrives from the tool layer.
type Item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type Request struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	City          string `json:"city"`
	Address       string `json:"address"`
	Channel       string `json:"channel"`
	Items         []Item `json:"items"`
}

type Confirmation struct {
	OrderID        int64 `json:"order_id"`
	CustomerID     int64 `json:"customer_id"`
	TotalAmount    int64 `json:"total_amount"`
	DiscountAmount int64 `json:"discount_amount"`
	FinalAmount    int64 `json:"final_amount"`
}

// Product and Customer are the projections the transaction needs; the store
// maps its own models onto them.
type Product struct {
	ID           int64
	SKU          string
	PricePerPack int64
}

type Customer struct {
	ID    int64
	Name  string
	Phone string
	City  string
}

type Line struct {
	ProductID    int64
	SKU          string
	QtyPacks     int
	PricePerPack int64
	Subtotal     int64
}

// Draft is the order as persisted, items included.
type Draft struct {
	CustomerID     int64
	Channel        string
	City           string
	Address        string
	TotalAmount    int64
	DiscountAmount int64
	FinalAmount    int64
	Items          []Line
}

// Tx is the transactional view of the store. Every method runs inside the
// same database transaction; TryReserve must be a single atomic conditional
// update.
type Tx interface {
	CustomerByPhone(ctx context.Context, phone string) (Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	ProductBySKU(ctx context.Context, sku string) (Product, error)
	Availability(ctx context.Context, productID int64) (int, error)
	TryReserve(ctx context.Context, productID int64, qty int) (bool, error)
	Release(ctx context.Context, productID int64, qty int) error
	CommitReservation(ctx context.Context, productID int64, qty int) error
	InsertOrder(ctx context.Context, draft Draft) (int64, error)
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Config struct {
	// AllowedCities are lowercase substrings matched against the delivery
	// city; orders outside them are rejected before any reservation.
	AllowedCities     []string `envconfig:"ALLOWED_CITIES" split_words:"true" default:"петербург,спб"`
	DiscountThreshold int64    `envconfig:"DISCOUNT_THRESHOLD" split_words:"true" default:"5000"`
	DiscountPercent   int64    `envconfig:"DISCOUNT_PERCENT" split_words:"true" default:"10"`
}

type ProductNotFoundError struct {
	SKU string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.SKU)
}

func (e *ProductNotFoundError) Unwrap() error { return contractx.ErrProductNotFound }

type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return contractx.ErrInsufficientStock }

// Service owns all writes to inventory, orders and order items for the
// duration of one order.
type Service struct {
	store         Store
	allowedCities []string
	threshold     int64
	percent       int64
}

func NewService(store Store, cfg Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("order store is required")
	}

	cities := make([]string, 0, len(cfg.AllowedCities))
	for _, c := range cfg.AllowedCities {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			cities = append(cities, c)
		}
	}
	if len(cities) == 0 {
		return nil, errors.New("at least one allowed city is required")
	}

	threshold := cfg.DiscountThreshold
	if threshold <= 0 {
		threshold = 5000
	}
	percent := cfg.DiscountPercent
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("discount percent %d out of range", cfg.DiscountPercent)
	}

	return &Service{
		store:         store,
		allowedCities: cities,
		threshold:     threshold,
		percent:       percent,
	}, nil
}

// CityAllowed reports whether the delivery city matches the configured
// substrings, case-insensitively.
func (s *Service) CityAllowed(city string) bool {
	normalized := strings.ToLower(city)
	for _, c := range s.allowedCities {
		if strings.Contains(normalized, c) {
			return true
		}
	}
	return false
}

// Discount returns the discount for a given order total: percent of total,
// integer-truncated, once the threshold is met.
func (s *Service) Discount(total int64) int64 {
	if total < s.threshold {
		return 0
	}
	return total * s.percent / 100
}

func (s *Service) DiscountThreshold() int64 { return s.threshold }

// Place runs the whole fulfillment transaction and returns the persisted
// order id with computed totals, or a precise failure with nothing persisted.
func (s *Service) Place(ctx context.Context, req Request) (Confirmation, error) {
	phone := strings.TrimSpace(req.CustomerPhone)
	if phone == "" {
		return Confirmation{}, fmt.Errorf("%w: customer phone is required", contractx.ErrValidation)
	}
	if len(req.Items) == 0 {
		return Confirmation{}, fmt.Errorf("%w: order has no items", contractx.ErrValidation)
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.SKU) == "" {
			return Confirmation{}, fmt.Errorf("%w: item sku is required", contractx.ErrValidation)
		}
		if item.Qty <= 0 {
			return Confirmation{}, fmt.Errorf("%w: qty for %s must be positive", contractx.ErrValidation, item.SKU)
		}
	}
	if !s.CityAllowed(req.City) {
		return Confirmation{}, fmt.Errorf("%w: %s", contractx.ErrUnsupportedRegion, req.City)
	}

	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		channel = "chat"
	}

	var conf Confirmation
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		customerID, err := s.resolveCustomer(ctx, tx, req)
		if err != nil {
			return err
		}

		// Resolve the full item list before touching the ledger so an
		// unknown sku aborts with zero reservations.
		lines := make([]Line, 0, len(req.Items))
		var total int64
		for _, item := range req.Items {
			product, err := tx.ProductBySKU(ctx, item.SKU)
			if errors.Is(err, contractx.ErrNotFound) {
				return &ProductNotFoundError{SKU: item.SKU}
			}
			if err != nil {
				return err
			}
			subtotal := product.PricePerPack * int64(item.Qty)
			total += subtotal
			lines = append(lines, Line{
				ProductID:    product.ID,
				SKU:          product.SKU,
				QtyPacks:     item.Qty,
				PricePerPack: product.PricePerPack,
				Subtotal:     subtotal,
			})
		}

		// Ordered acquire; on any failure every reservation taken in this
		// pass is released before returning.
		reserved := lines[:0:0]
		releaseAll := func() {
			for _, l := range reserved {
				if rerr := tx.Release(ctx, l.ProductID, l.QtyPacks); rerr != nil {
					log.Error().Err(rerr).Str("sku", l.SKU).Msg("release reservation failed")
				}
			}
		}
		for _, l := range lines {
			ok, err := tx.TryReserve(ctx, l.ProductID, l.QtyPacks)
			if err != nil {
				releaseAll()
				return err
			}
			if !ok {
				available, aerr := tx.Availability(ctx, l.ProductID)
				releaseAll()
				if aerr != nil {
					available = 0
				}
				return &InsufficientStockError{SKU: l.SKU, Requested: l.QtyPacks, Available: available}
			}
			reserved = append(reserved, l)
		}

		discount := s.Discount(total)
		draft := Draft{
			CustomerID:     customerID,
			Channel:        channel,
			City:           req.City,
			Address:        req.Address,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    total - discount,
			Items:          lines,
		}

		orderID, err := tx.InsertOrder(ctx, draft)
		if err != nil {
			releaseAll()
			return err
		}

		// Finalize: stock decremented, reservations returned to zero net.
		for _, l := range reserved {
			if err := tx.CommitReservation(ctx, l.ProductID, l.QtyPacks); err != nil {
				return err
			}
		}

		conf = Confirmation{
			OrderID:        orderID,
			CustomerID:     customerID,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    total - discount,
		}
		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}

	log.Info().
		Int64("order_id", conf.OrderID).
		Int64("total", conf.TotalAmount).
		Int64("discount", conf.DiscountAmount).
		Str("city", req.City).
		Msg("order placed")
	return conf, nil
}

func (s *Service) resolveCustomer(ctx context.Context, tx Tx, req Request) (int64, error) {
	customer, err := tx.CustomerByPhone(ctx, strings.TrimSpace(req.CustomerPhone))
	if err == nil {
		return customer.ID, nil
	}
	if !errors.Is(err, contractx.ErrNotFound) {
		return 0, err
	}
	return tx.CreateCustomer(ctx, Customer{
		Name:  strings.TrimSpace(req.CustomerName),
		Phone: strings.TrimSpace(req.CustomerPhone),
		City:  req.City,
	})
}
