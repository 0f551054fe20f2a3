package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
	loopx "github.com/aquadoks/sales-agent/agent/loop"
	storex "github.com/aquadoks/sales-agent/store"
)

type fakeConversationStore struct {
	sessionID  int64
	sessionErr error
	history    []contractx.HistoryMessage
	logged     []contractx.LogEntry
}

func (f *fakeConversationStore) GetOrCreateSession(ctx context.Context, channel, externalChatID string) (int64, error) {
	if f.sessionErr != nil {
		return 0, f.sessionErr
	}
	return f.sessionID, nil
}

func (f *fakeConversationStore) LogMessage(ctx context.Context, entry contractx.LogEntry) error {
	f.logged = append(f.logged, entry)
	return nil
}

func (f *fakeConversationStore) History(ctx context.Context, sessionID int64, limit int) ([]contractx.HistoryMessage, error) {
	return f.history, nil
}

type fakeTurnRunner struct {
	result  loopx.Result
	err     error
	history []contractx.HistoryMessage
	text    string
}

func (f *fakeTurnRunner) Run(ctx context.Context, history []contractx.HistoryMessage, userText string) (loopx.Result, error) {
	f.history = history
	f.text = userText
	if f.err != nil {
		return loopx.Result{}, f.err
	}
	return f.result, nil
}

type fakeOrderHistory struct {
	customer *storex.Customer
	orders   []storex.Order
	err      error
}

func (f *fakeOrderHistory) CustomerBySession(ctx context.Context, channel, externalChatID string) (*storex.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.customer, nil
}

func (f *fakeOrderHistory) RecentOrders(ctx context.Context, customerID int64, limit int) ([]storex.Order, error) {
	return f.orders, nil
}

func newTestAgent(t *testing.T, store *fakeConversationStore, orders OrderHistory, turn *fakeTurnRunner) *Agent {
	t.Helper()
	a, err := New(store, orders, turn, Config{Channel: "chat", HistoryLimit: 10})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestHandleMessageLogsBothSides(t *testing.T) {
	t.Parallel()

	store := &fakeConversationStore{
		sessionID: 7,
		history: []contractx.HistoryMessage{
			{Role: contractx.RoleUser, Content: "привет"},
		},
	}
	turn := &fakeTurnRunner{result: loopx.Result{Reply: "Здравствуйте!", State: loopx.StateCompleted, Rounds: 1}}
	a := newTestAgent(t, store, nil, turn)

	reply, err := a.HandleMessage(context.Background(), "chat-1", "покажи товары")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply != "Здравствуйте!" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if turn.text != "покажи товары" {
		t.Fatalf("loop got wrong user text: %q", turn.text)
	}
	if len(turn.history) != 1 || turn.history[0].Content != "привет" {
		t.Fatalf("loop got wrong history: %#v", turn.history)
	}

	if len(store.logged) != 2 {
		t.Fatalf("expected user and assistant entries, got %d", len(store.logged))
	}
	if store.logged[0].Role != contractx.RoleUser || store.logged[0].Content != "покажи товары" {
		t.Fatalf("unexpected user entry: %+v", store.logged[0])
	}
	if store.logged[1].Role != contractx.RoleAssistant || store.logged[1].Content != "Здравствуйте!" {
		t.Fatalf("unexpected assistant entry: %+v", store.logged[1])
	}
	if store.logged[0].SessionID != 7 || store.logged[1].SessionID != 7 {
		t.Fatal("entries must carry the session id")
	}
}

func TestHandleMessageDegradesOnTransportFailure(t *testing.T) {
	t.Parallel()

	store := &fakeConversationStore{sessionID: 7}
	turn := &fakeTurnRunner{err: fmt.Errorf("%w: provider round 1: timeout", contractx.ErrTransport)}
	a := newTestAgent(t, store, nil, turn)

	reply, err := a.HandleMessage(context.Background(), "chat-1", "привет")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply != TransportApology {
		t.Fatalf("unexpected reply: %q", reply)
	}

	// One user entry plus one error marker; the apology itself is not logged
	// twice.
	if len(store.logged) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(store.logged))
	}
	if store.logged[1].Role != contractx.RoleAssistant || !strings.HasPrefix(store.logged[1].Content, "Error:") {
		t.Fatalf("unexpected error entry: %+v", store.logged[1])
	}
}

func TestHandleMessagePropagatesOtherErrors(t *testing.T) {
	t.Parallel()

	store := &fakeConversationStore{sessionID: 7}
	turn := &fakeTurnRunner{err: errors.New("boom")}
	a := newTestAgent(t, store, nil, turn)

	_, err := a.HandleMessage(context.Background(), "chat-1", "привет")
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func TestHandleMessageValidatesInput(t *testing.T) {
	t.Parallel()

	store := &fakeConversationStore{sessionID: 7}
	turn := &fakeTurnRunner{result: loopx.Result{Reply: "ок"}}
	a := newTestAgent(t, store, nil, turn)

	for _, tc := range []struct{ chatID, text string }{
		{chatID: "", text: "привет"},
		{chatID: "chat-1", text: "   "},
	} {
		_, err := a.HandleMessage(context.Background(), tc.chatID, tc.text)
		if !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("HandleMessage(%q, %q) = %v, want ErrValidation", tc.chatID, tc.text, err)
		}
	}
	if len(store.logged) != 0 {
		t.Fatalf("invalid input must not reach the log, got %d entries", len(store.logged))
	}
}

func TestOrderStatusRendersRecentOrders(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)
	orders := &fakeOrderHistory{
		customer: &storex.Customer{ID: 3, Name: "Иван"},
		orders: []storex.Order{
			{ID: 42, Status: "pending", FinalAmount: 4500, CreatedAt: created},
			{ID: 41, Status: "completed", FinalAmount: 2000, CreatedAt: created.Add(-24 * time.Hour)},
		},
	}
	a := newTestAgent(t, &fakeConversationStore{sessionID: 7}, orders, &fakeTurnRunner{})

	out, err := a.OrderStatus(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("OrderStatus() error = %v", err)
	}
	if !strings.Contains(out, "Заказ #42 от 30.08.2026 14:05") {
		t.Fatalf("missing first order: %q", out)
	}
	if !strings.Contains(out, "Статус: Ожидает оплаты") {
		t.Fatalf("status must be localized: %q", out)
	}
	if !strings.Contains(out, "Статус: Завершён") {
		t.Fatalf("missing second status: %q", out)
	}
}

func TestOrderStatusWithoutCustomer(t *testing.T) {
	t.Parallel()

	orders := &fakeOrderHistory{err: contractx.ErrNotFound}
	a := newTestAgent(t, &fakeConversationStore{sessionID: 7}, orders, &fakeTurnRunner{})

	out, err := a.OrderStatus(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("OrderStatus() error = %v", err)
	}
	if !strings.Contains(out, "У вас пока нет заказов") {
		t.Fatalf("unexpected reply: %q", out)
	}
}
