package tool

import (
	"context"
	"strings"
	"testing"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
	orderx "github.com/aquadoks/sales-agent/agent/order"
	storex "github.com/aquadoks/sales-agent/store"
)

type fakeCatalog struct {
	entries []storex.CatalogEntry
	listErr error
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]storex.CatalogEntry, error) {
	return f.entries, f.listErr
}

func (f *fakeCatalog) StockBySKU(ctx context.Context, sku string) (storex.CatalogEntry, error) {
	for _, e := range f.entries {
		if e.SKU == sku {
			return e, nil
		}
	}
	return storex.CatalogEntry{}, contractx.ErrNotFound
}

type fakePlacer struct {
	conf orderx.Confirmation
	err  error
	last orderx.Request
}

func (f *fakePlacer) Place(ctx context.Context, req orderx.Request) (orderx.Confirmation, error) {
	f.last = req
	if f.err != nil {
		return orderx.Confirmation{}, f.err
	}
	return f.conf, nil
}

type fakeLinker struct {
	channel    string
	chatID     string
	customerID int64
	calls      int
}

func (f *fakeLinker) LinkCustomer(ctx context.Context, channel, externalChatID string, customerID int64) error {
	f.channel = channel
	f.chatID = externalChatID
	f.customerID = customerID
	f.calls++
	return nil
}

type fakePricing struct{}

func (fakePricing) Discount(total int64) int64 {
	if total < 5000 {
		return 0
	}
	return total * 10 / 100
}

func (fakePricing) DiscountThreshold() int64 { return 5000 }

func testEntries() []storex.CatalogEntry {
	return []storex.CatalogEntry{
		{SKU: "0_5L", Name: "AQUADOKS 0.5 л", Volume: "0.5 л", PackSize: 12, PricePerPack: 1000, Available: 120},
		{SKU: "19L", Name: "AQUADOKS 19 л", Volume: "19 л", PackSize: 1, PricePerPack: 1000, Available: 50},
	}
}

func newTestExecutor(t *testing.T, catalog *fakeCatalog, placer *fakePlacer) *Executor {
	t.Helper()
	e, err := NewExecutor(catalog, placer, fakePricing{}, "chat")
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	return e
}

func TestExecuteGetProducts(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, &fakePlacer{})

	out := e.Execute(context.Background(), ToolGetProducts, "{}")
	if !strings.Contains(out, "Товары AQUADOKS:") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "0_5L") || !strings.Contains(out, "19L") {
		t.Fatalf("missing skus: %q", out)
	}
	if !strings.Contains(out, "в наличии: 50 упаковок") {
		t.Fatalf("missing availability: %q", out)
	}
}

func TestExecuteCheckStockUnknownSKU(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, &fakePlacer{})

	out := e.Execute(context.Background(), ToolCheckStock, `{"sku":"UNKNOWN"}`)
	if !strings.Contains(out, "Товар с SKU 'UNKNOWN' не найден") {
		t.Fatalf("unexpected reply: %q", out)
	}
	if !strings.Contains(out, "0_5L, 19L") {
		t.Fatalf("reply must list known skus: %q", out)
	}
}

func TestExecuteCalculateOrderSkipsUnknownSKU(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, &fakePlacer{})

	out := e.Execute(context.Background(), ToolCalculateOrder,
		`{"items":[{"sku":"19L","qty":2},{"sku":"NOPE","qty":1}]}`)
	if !strings.Contains(out, "19L x 2 упаковок = 2000 руб") {
		t.Fatalf("missing line total: %q", out)
	}
	if !strings.Contains(out, "NOPE: товар не найден") {
		t.Fatalf("unknown sku must be reported inline: %q", out)
	}
	if !strings.Contains(out, "Сумма: 2000 руб") {
		t.Fatalf("unknown sku must not contribute to the total: %q", out)
	}
	if !strings.Contains(out, "До скидки 10% не хватает 3000 руб") {
		t.Fatalf("missing discount gap hint: %q", out)
	}
}

func TestExecuteCalculateOrderWithDiscount(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, &fakePlacer{})

	out := e.Execute(context.Background(), ToolCalculateOrder, `{"items":[{"sku":"19L","qty":6}]}`)
	if !strings.Contains(out, "Сумма: 6000 руб") {
		t.Fatalf("unexpected subtotal: %q", out)
	}
	if !strings.Contains(out, "Скидка 10%: -600 руб") {
		t.Fatalf("missing discount line: %q", out)
	}
	if !strings.Contains(out, "Итого: 5400 руб") {
		t.Fatalf("unexpected final total: %q", out)
	}
}

func TestExecuteCreateOrderSuccess(t *testing.T) {
	t.Parallel()

	placer := &fakePlacer{
		conf: orderx.Confirmation{OrderID: 42, TotalAmount: 5000, DiscountAmount: 500, FinalAmount: 4500},
	}
	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, placer)

	out := e.Execute(context.Background(), ToolCreateOrder,
		`{"customer_name":"Иван","customer_phone":"+79990001122","city":"Санкт-Петербург","address":"Невский пр., 1","items":[{"sku":"19L","qty":5}]}`)
	if !strings.Contains(out, "Заказ #42 создан!") {
		t.Fatalf("missing confirmation: %q", out)
	}
	if !strings.Contains(out, "скидка: 500 руб") {
		t.Fatalf("missing discount: %q", out)
	}
	if !strings.Contains(out, "Итого к оплате: 4500 руб") {
		t.Fatalf("missing final amount: %q", out)
	}
	if placer.last.Channel != "chat" {
		t.Fatalf("expected channel to be injected, got %q", placer.last.Channel)
	}
}

func TestExecuteCreateOrderLinksSession(t *testing.T) {
	t.Parallel()

	placer := &fakePlacer{
		conf: orderx.Confirmation{OrderID: 42, CustomerID: 9, TotalAmount: 1000, FinalAmount: 1000},
	}
	linker := &fakeLinker{}
	e, err := NewExecutor(&fakeCatalog{entries: testEntries()}, placer, fakePricing{}, "chat", WithLinker(linker))
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	ctx := contractx.WithChatID(context.Background(), "chat-77")
	out := e.Execute(ctx, ToolCreateOrder,
		`{"customer_name":"Иван","customer_phone":"+7","city":"спб","address":"адрес","items":[{"sku":"19L","qty":1}]}`)
	if !strings.Contains(out, "Заказ #42 создан!") {
		t.Fatalf("unexpected reply: %q", out)
	}
	if linker.calls != 1 || linker.channel != "chat" || linker.chatID != "chat-77" || linker.customerID != 9 {
		t.Fatalf("unexpected linkage: %+v", linker)
	}
}

type fakeRecorder struct {
	entries []contractx.LogEntry
}

func (f *fakeRecorder) LogMessage(ctx context.Context, entry contractx.LogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func TestExecuteRecordsInvocation(t *testing.T) {
	t.Parallel()

	recorder := &fakeRecorder{}
	e, err := NewExecutor(&fakeCatalog{entries: testEntries()}, &fakePlacer{}, fakePricing{}, "chat",
		WithRecorder(recorder))
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	ctx := contractx.WithSessionID(context.Background(), 7)
	e.Execute(ctx, ToolCheckStock, `{"sku":"19L"}`)

	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.SessionID != 7 || entry.Role != contractx.RoleTool || entry.ToolName != ToolCheckStock {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.ToolArgs["sku"] != "19L" {
		t.Fatalf("unexpected tool args: %#v", entry.ToolArgs)
	}
	if !strings.Contains(entry.Content, "Товар 19L") {
		t.Fatalf("entry must carry the tool result: %q", entry.Content)
	}

	// Without a session in the context nothing is recorded.
	e.Execute(context.Background(), ToolCheckStock, `{"sku":"19L"}`)
	if len(recorder.entries) != 1 {
		t.Fatalf("expected no extra entries, got %d", len(recorder.entries))
	}
}

func TestExecuteCreateOrderUnsupportedRegion(t *testing.T) {
	t.Parallel()

	placer := &fakePlacer{err: contractx.ErrUnsupportedRegion}
	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, placer)

	out := e.Execute(context.Background(), ToolCreateOrder,
		`{"customer_name":"Иван","customer_phone":"+7","city":"Москва","address":"ул. Тверская, 1","items":[{"sku":"19L","qty":1}]}`)
	if !strings.Contains(out, "только для Санкт-Петербурга") {
		t.Fatalf("unexpected reply: %q", out)
	}
	if !strings.Contains(out, "маркетплейсы") {
		t.Fatalf("reply must point at marketplaces: %q", out)
	}
}

func TestExecuteCreateOrderInsufficientStock(t *testing.T) {
	t.Parallel()

	placer := &fakePlacer{err: &orderx.InsufficientStockError{SKU: "19L", Requested: 5, Available: 2}}
	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, placer)

	out := e.Execute(context.Background(), ToolCreateOrder,
		`{"customer_name":"Иван","customer_phone":"+7","city":"спб","address":"адрес","items":[{"sku":"19L","qty":5}]}`)
	if !strings.Contains(out, "Недостаточно товара 19L") {
		t.Fatalf("unexpected reply: %q", out)
	}
	if !strings.Contains(out, "доступно 2") || !strings.Contains(out, "запрошено 5") {
		t.Fatalf("reply must carry the shortage numbers: %q", out)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, &fakePlacer{})

	out := e.Execute(context.Background(), "send_rocket", "{}")
	if out != "Неизвестная функция: send_rocket" {
		t.Fatalf("unexpected reply: %q", out)
	}
}

func TestExecuteMalformedArguments(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, &fakeCatalog{entries: testEntries()}, &fakePlacer{})

	out := e.Execute(context.Background(), ToolCheckStock, `{"sku":`)
	if !strings.Contains(out, "Некорректные аргументы") {
		t.Fatalf("malformed args must become a conversational string: %q", out)
	}
}
