package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Product is a catalog entry. SKU is the customer-facing variant code
// (0_5L, 1L, 5L, 19L) and is immutable after seeding. Prices are integer
// rubles per pack.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID           int64     `bun:"id,pk,autoincrement"`
	SKU          string    `bun:"sku,notnull,unique"`
	Name         string    `bun:"name,notnull"`
	Volume       string    `bun:"volume,notnull"`
	PackSize     int       `bun:"pack_size,notnull"`
	PricePerPack int64     `bun:"price_per_pack,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Inventory tracks stock per product. Invariant maintained by the guarded
// updates in inventory.go: 0 <= reserved_packs <= stock_packs.
type Inventory struct {
	bun.BaseModel `bun:"table:inventory,alias:i"`

	ID            int64     `bun:"id,pk,autoincrement"`
	ProductID     int64     `bun:"product_id,notnull,unique"`
	StockPacks    int       `bun:"stock_packs,notnull,default:0"`
	ReservedPacks int       `bun:"reserved_packs,notnull,default:0"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Customer is deduplicated by phone across channels.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Phone     string    `bun:"phone,notnull,unique"`
	City      string    `bun:"city"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID             int64     `bun:"id,pk,autoincrement"`
	CustomerID     int64     `bun:"customer_id,notnull"`
	Channel        string    `bun:"channel,notnull"`
	Status         string    `bun:"status,notnull,default:'pending'"`
	City           string    `bun:"city"`
	Address        string    `bun:"address"`
	TotalAmount    int64     `bun:"total_amount,notnull"`
	DiscountAmount int64     `bun:"discount_amount,notnull,default:0"`
	FinalAmount    int64     `bun:"final_amount,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID           int64  `bun:"id,pk,autoincrement"`
	OrderID      int64  `bun:"order_id,notnull"`
	ProductID    int64  `bun:"product_id,notnull"`
	SKU          string `bun:"sku,notnull"`
	QtyPacks     int    `bun:"qty_packs,notnull"`
	PricePerPack int64  `bun:"price_per_pack,notnull"`
	Subtotal     int64  `bun:"subtotal,notnull"`
}

// ChatSession ties a transport-specific chat id to a conversation.
type ChatSession struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:cs"`

	ID             int64      `bun:"id,pk,autoincrement"`
	CustomerID     *int64     `bun:"customer_id"`
	Channel        string     `bun:"channel,notnull"`
	ExternalChatID string     `bun:"external_chat_id,notnull"`
	StartedAt      time.Time  `bun:"started_at,nullzero,notnull,default:current_timestamp"`
	EndedAt        *time.Time `bun:"ended_at"`
}

type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages,alias:cm"`

	ID        int64          `bun:"id,pk,autoincrement"`
	SessionID int64          `bun:"session_id,notnull"`
	Role      string         `bun:"role,notnull"`
	Content   string         `bun:"content"`
	ToolName  string         `bun:"tool_name"`
	ToolArgs  map[string]any `bun:"tool_args,type:jsonb"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
