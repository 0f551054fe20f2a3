package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
	loopx "github.com/aquadoks/sales-agent/agent/loop"
	storex "github.com/aquadoks/sales-agent/store"
)

// TransportApology is shown to the customer when the provider or store is
// unreachable; the typed failure stays in the logs.
const TransportApology = "Извините, произошла техническая ошибка. Попробуйте позже или напишите /help"

// TurnRunner resolves one conversational turn. Implemented by loop.Loop.
type TurnRunner interface {
	Run(ctx context.Context, history []contractx.HistoryMessage, userText string) (loopx.Result, error)
}

// OrderHistory backs the /status lookup.
type OrderHistory interface {
	CustomerBySession(ctx context.Context, channel, externalChatID string) (*storex.Customer, error)
	RecentOrders(ctx context.Context, customerID int64, limit int) ([]storex.Order, error)
}

type Config struct {
	Channel      string `envconfig:"CHANNEL" split_words:"true" default:"chat"`
	HistoryLimit int    `envconfig:"HISTORY_LIMIT" split_words:"true" default:"10"`
}

// Agent ties the conversation log and the orchestration loop into the
// per-turn pipeline. Stateless between turns: everything shared lives in the
// store.
type Agent struct {
	store        contractx.ConversationStore
	orders       OrderHistory
	loop         TurnRunner
	channel      string
	historyLimit int

	graphRunner turnRunnable
}

func New(store contractx.ConversationStore, orders OrderHistory, turn TurnRunner, cfg Config) (*Agent, error) {
	if store == nil {
		return nil, errors.New("conversation store is required")
	}
	if turn == nil {
		return nil, errors.New("turn runner is required")
	}

	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "chat"
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 10
	}

	a := &Agent{
		store:        store,
		orders:       orders,
		loop:         turn,
		channel:      channel,
		historyLimit: historyLimit,
	}

	runner, err := a.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = runner
	return a, nil
}

// HandleMessage resolves one customer message into a reply. Transport
// failures inside the turn degrade to the generic apology; the conversation
// log records the underlying error.
func (a *Agent) HandleMessage(ctx context.Context, externalChatID, text string) (string, error) {
	out, err := a.graphRunner.Invoke(ctx, turnInput{
		ExternalChatID: externalChatID,
		Text:           text,
	})
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

var statusLabels = map[string]string{
	"pending":    "Ожидает оплаты",
	"paid":       "Оплачен",
	"processing": "В обработке",
	"delivering": "Доставляется",
	"completed":  "Завершён",
	"cancelled":  "Отменён",
}

// OrderStatus renders the customer's recent orders.
func (a *Agent) OrderStatus(ctx context.Context, externalChatID string) (string, error) {
	if a.orders == nil {
		return "У вас пока нет заказов.", nil
	}

	customer, err := a.orders.CustomerBySession(ctx, a.channel, externalChatID)
	if errors.Is(err, contractx.ErrNotFound) {
		return "У вас пока нет заказов.\n\nНапишите мне, чтобы оформить первый заказ!", nil
	}
	if err != nil {
		return "", err
	}

	orders, err := a.orders.RecentOrders(ctx, customer.ID, 5)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return "У вас пока нет заказов.\n\nНапишите мне, чтобы оформить первый заказ!", nil
	}

	var b strings.Builder
	b.WriteString("Ваши последние заказы:")
	for _, o := range orders {
		status := statusLabels[o.Status]
		if status == "" {
			status = o.Status
		}
		fmt.Fprintf(&b, "\n\nЗаказ #%d от %s\nСумма: %d руб\nСтатус: %s",
			o.ID, o.CreatedAt.Format("02.01.2006 15:04"), o.FinalAmount, status)
	}
	return b.String(), nil
}

func (a *Agent) Greeting(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "друг"
	}
	return fmt.Sprintf("Привет, %s!\n\n"+
		"Я — бот-помощник AQUADOKS, щелочной воды для здоровья и энергии.\n\n"+
		"Чем могу помочь?\n"+
		"• Расскажу о продукции и ценах\n"+
		"• Помогу оформить заказ\n"+
		"• Отвечу на вопросы о доставке\n\n"+
		"Просто напишите, что вас интересует!", name)
}

func (a *Agent) Help() string {
	return "Доступные команды:\n\n" +
		"/start — начать диалог\n" +
		"/help — показать эту справку\n" +
		"/status — статус ваших заказов\n\n" +
		"Скидка 10% при заказе от 5 000 руб!\n\n" +
		"Доставка:\n" +
		"• Санкт-Петербург — доставка курьером\n" +
		"• Другие города — через маркетплейсы (Ozon, Wildberries, Яндекс.Маркет)"
}

func (a *Agent) logEntry(ctx context.Context, entry contractx.LogEntry) {
	if err := a.store.LogMessage(ctx, entry); err != nil {
		log.Error().Err(err).Int64("session_id", entry.SessionID).Msg("log chat message failed")
	}
}
