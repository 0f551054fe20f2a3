package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
	orderx "github.com/aquadoks/sales-agent/agent/order"
	storex "github.com/aquadoks/sales-agent/store"
)

// Catalog is the read-only product view the handlers render.
type Catalog interface {
	ListProducts(ctx context.Context) ([]storex.CatalogEntry, error)
	StockBySKU(ctx context.Context, sku string) (storex.CatalogEntry, error)
}

// Placer runs the fulfillment transaction.
type Placer interface {
	Place(ctx context.Context, req orderx.Request) (orderx.Confirmation, error)
}

// Pricing exposes the discount rule for the pure calculate_order preview.
type Pricing interface {
	Discount(total int64) int64
	DiscountThreshold() int64
}

// Linker ties the chat session to the customer a successful order resolved.
type Linker interface {
	LinkCustomer(ctx context.Context, channel, externalChatID string, customerID int64) error
}

// Recorder appends tool invocations to the conversation log.
type Recorder interface {
	LogMessage(ctx context.Context, entry contractx.LogEntry) error
}

// Executor dispatches provider tool calls to handlers. Handlers never return
// an error: every failure becomes a descriptive string the model can relay,
// so a bad call never ends the conversation.
type Executor struct {
	catalog  Catalog
	placer   Placer
	pricing  Pricing
	linker   Linker
	recorder Recorder
	channel  string
}

type Option func(*Executor)

// WithLinker enables session-customer linkage after a successful order.
func WithLinker(l Linker) Option {
	return func(e *Executor) { e.linker = l }
}

// WithRecorder persists every tool invocation to the conversation log.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

func NewExecutor(catalog Catalog, placer Placer, pricing Pricing, channel string, opts ...Option) (*Executor, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if placer == nil {
		return nil, errors.New("order placer is required")
	}
	if pricing == nil {
		return nil, errors.New("pricing is required")
	}
	if strings.TrimSpace(channel) == "" {
		channel = "chat"
	}
	e := &Executor{catalog: catalog, placer: placer, pricing: pricing, channel: channel}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs one tool call. rawArgs is the provider's argument payload as
// received, a JSON object string.
func (e *Executor) Execute(ctx context.Context, name, rawArgs string) string {
	log.Info().Str("tool", name).Str("args", rawArgs).Msg("tool invoked")

	result := e.dispatch(ctx, name, rawArgs)
	e.record(ctx, name, rawArgs, result)

	log.Debug().Str("tool", name).Str("result", truncate(result, 200)).Msg("tool finished")
	return result
}

// record appends the invocation to the chat log when a recorder is wired and
// the context carries a session. Best effort: a log failure never affects the
// tool result.
func (e *Executor) record(ctx context.Context, name, rawArgs, result string) {
	if e.recorder == nil {
		return
	}
	sessionID := contractx.SessionIDFrom(ctx)
	if sessionID == 0 {
		return
	}

	var args map[string]any
	if trimmed := strings.TrimSpace(rawArgs); trimmed != "" {
		_ = json.Unmarshal([]byte(trimmed), &args)
	}
	err := e.recorder.LogMessage(ctx, contractx.LogEntry{
		SessionID: sessionID,
		Role:      contractx.RoleTool,
		Content:   truncate(result, 1000),
		ToolName:  name,
		ToolArgs:  args,
	})
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("log tool invocation failed")
	}
}

func (e *Executor) dispatch(ctx context.Context, name, rawArgs string) string {
	switch name {
	case ToolGetProducts:
		return e.getProducts(ctx)
	case ToolCheckStock:
		return e.checkStock(ctx, rawArgs)
	case ToolCalculateOrder:
		return e.calculateOrder(ctx, rawArgs)
	case ToolCreateOrder:
		return e.createOrder(ctx, rawArgs)
	default:
		return fmt.Sprintf("Неизвестная функция: %s", name)
	}
}

func (e *Executor) getProducts(ctx context.Context) string {
	entries, err := e.catalog.ListProducts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list products failed")
		return "Не удалось получить список товаров, попробуйте позже"
	}
	if len(entries) == 0 {
		return "Товары не найдены в базе данных"
	}

	var b strings.Builder
	b.WriteString("Товары AQUADOKS:")
	for _, p := range entries {
		fmt.Fprintf(&b, "\n- %s: %s (%s, %d шт в упаковке) — %d руб/упаковка, в наличии: %d упаковок",
			p.SKU, p.Name, p.Volume, p.PackSize, p.PricePerPack, p.Available)
	}
	return b.String()
}

type checkStockArgs struct {
	SKU string `json:"sku"`
}

func (e *Executor) checkStock(ctx context.Context, rawArgs string) string {
	var args checkStockArgs
	if msg := decodeArgs(rawArgs, &args); msg != "" {
		return msg
	}
	sku := strings.TrimSpace(args.SKU)
	if sku == "" {
		return "Укажите SKU товара: 0_5L, 1L, 5L или 19L"
	}

	entry, err := e.catalog.StockBySKU(ctx, sku)
	if errors.Is(err, contractx.ErrNotFound) {
		return fmt.Sprintf("Товар с SKU '%s' не найден. Доступные SKU: %s", sku, e.knownSKUs(ctx))
	}
	if err != nil {
		log.Error().Err(err).Str("sku", sku).Msg("stock lookup failed")
		return "Не удалось проверить наличие, попробуйте позже"
	}

	return fmt.Sprintf("Товар %s (%s): цена %d руб/упаковка, в наличии %d упаковок",
		entry.SKU, entry.Name, entry.PricePerPack, entry.Available)
}

type itemsArgs struct {
	Items []orderx.Item `json:"items"`
}

// calculateOrder is a pure pricing preview: unknown skus are reported inline
// and skipped, nothing is reserved.
func (e *Executor) calculateOrder(ctx context.Context, rawArgs string) string {
	var args itemsArgs
	if msg := decodeArgs(rawArgs, &args); msg != "" {
		return msg
	}
	if len(args.Items) == 0 {
		return "Список товаров пуст"
	}

	var b strings.Builder
	b.WriteString("Расчёт заказа:")
	var subtotal int64
	for _, item := range args.Items {
		if item.Qty <= 0 {
			fmt.Fprintf(&b, "\n- %s: некорректное количество", item.SKU)
			continue
		}
		entry, err := e.catalog.StockBySKU(ctx, item.SKU)
		if errors.Is(err, contractx.ErrNotFound) {
			fmt.Fprintf(&b, "\n- %s: товар не найден", item.SKU)
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("sku", item.SKU).Msg("price lookup failed")
			return "Не удалось рассчитать заказ, попробуйте позже"
		}
		itemTotal := entry.PricePerPack * int64(item.Qty)
		subtotal += itemTotal
		fmt.Fprintf(&b, "\n- %s x %d упаковок = %d руб", item.SKU, item.Qty, itemTotal)
	}

	fmt.Fprintf(&b, "\n\nСумма: %d руб", subtotal)
	if discount := e.pricing.Discount(subtotal); discount > 0 {
		fmt.Fprintf(&b, "\nСкидка 10%%: -%d руб", discount)
		fmt.Fprintf(&b, "\nИтого: %d руб", subtotal-discount)
	} else {
		if gap := e.pricing.DiscountThreshold() - subtotal; gap > 0 && subtotal > 0 {
			fmt.Fprintf(&b, "\nДо скидки 10%% не хватает %d руб", gap)
		}
		fmt.Fprintf(&b, "\nИтого: %d руб", subtotal)
	}
	return b.String()
}

type createOrderArgs struct {
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	City          string        `json:"city"`
	Address       string        `json:"address"`
	Items         []orderx.Item `json:"items"`
}

func (e *Executor) createOrder(ctx context.Context, rawArgs string) string {
	var args createOrderArgs
	if msg := decodeArgs(rawArgs, &args); msg != "" {
		return msg
	}

	conf, err := e.placer.Place(ctx, orderx.Request{
		CustomerName:  args.CustomerName,
		CustomerPhone: args.CustomerPhone,
		City:          args.City,
		Address:       args.Address,
		Channel:       e.channel,
		Items:         args.Items,
	})
	if err != nil {
		return orderFailureMessage(err)
	}

	if e.linker != nil {
		if chatID := contractx.ChatIDFrom(ctx); chatID != "" {
			if lerr := e.linker.LinkCustomer(ctx, e.channel, chatID, conf.CustomerID); lerr != nil {
				log.Warn().Err(lerr).Int64("customer_id", conf.CustomerID).Msg("link session customer failed")
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Заказ #%d создан!\nСумма: %d руб", conf.OrderID, conf.TotalAmount)
	if conf.DiscountAmount > 0 {
		fmt.Fprintf(&b, ", скидка: %d руб", conf.DiscountAmount)
	}
	fmt.Fprintf(&b, "\nИтого к оплате: %d руб", conf.FinalAmount)
	fmt.Fprintf(&b, "\nАдрес доставки: %s, %s", args.Address, args.City)
	b.WriteString("\nСсылка на оплату будет отправлена отдельно.")
	return b.String()
}

func orderFailureMessage(err error) string {
	var notFound *orderx.ProductNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("Товар %s не найден", notFound.SKU)
	}
	var short *orderx.InsufficientStockError
	if errors.As(err, &short) {
		return fmt.Sprintf("Недостаточно товара %s: доступно %d, запрошено %d",
			short.SKU, short.Available, short.Requested)
	}
	switch {
	case errors.Is(err, contractx.ErrUnsupportedRegion):
		return "Заказы через бота доступны только для Санкт-Петербурга. Для других городов используйте маркетплейсы."
	case errors.Is(err, contractx.ErrValidation):
		return "Для оформления заказа нужны имя, телефон, город, адрес и список товаров."
	default:
		log.Error().Err(err).Msg("create order failed")
		return "Не удалось создать заказ, попробуйте позже"
	}
}

// decodeArgs parses the raw payload; malformed arguments become a
// conversational error string, never a crash.
func decodeArgs(rawArgs string, dst any) string {
	trimmed := strings.TrimSpace(rawArgs)
	if trimmed == "" {
		trimmed = "{}"
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err != nil {
		log.Warn().Str("args", truncate(rawArgs, 200)).Err(err).Msg("malformed tool arguments")
		return "Некорректные аргументы запроса, попробуйте переформулировать"
	}
	return ""
}

func (e *Executor) knownSKUs(ctx context.Context) string {
	entries, err := e.catalog.ListProducts(ctx)
	if err != nil || len(entries) == 0 {
		return "0_5L, 1L, 5L, 19L"
	}
	skus := make([]string, 0, len(entries))
	for _, p := range entries {
		skus = append(skus, p.SKU)
	}
	return strings.Join(skus, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
