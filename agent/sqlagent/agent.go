package sqlagent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

// deniedStatements rejects destructive SQL regardless of what the model
// produced; the prompt forbids these, the guard enforces it.
var deniedStatements = regexp.MustCompile(`(?i)\b(drop|truncate|alter|grant|revoke|vacuum)\b`)

const maxRenderedRows = 50

// Agent turns a natural-language admin request into one ad-hoc SQL
// statement, runs it and renders the result as plain text. Authentication of
// the admin channel happens outside this package.
type Agent struct {
	client       *openaisdk.Client
	model        string
	temperature  float64
	db           contractx.RawQuerier
	systemPrompt string
}

func New(client *openaisdk.Client, model string, temperature float32, db contractx.RawQuerier, systemPrompt string) (*Agent, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model is required")
	}
	if db == nil {
		return nil, errors.New("raw querier is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, errors.New("system prompt is required")
	}
	return &Agent{
		client:       client,
		model:        model,
		temperature:  float64(temperature),
		db:           db,
		systemPrompt: systemPrompt,
	}, nil
}

// GenerateSQL asks the model for a statement and normalizes the reply.
func (a *Agent) GenerateSQL(ctx context.Context, request string) (string, error) {
	if strings.TrimSpace(request) == "" {
		return "", fmt.Errorf("%w: request is empty", contractx.ErrValidation)
	}

	completion, err := a.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(a.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(a.systemPrompt),
			openaisdk.UserMessage(request),
		},
		Temperature: openaisdk.Float(a.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: sql completion: %v", contractx.ErrTransport, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: sql completion has no choices", contractx.ErrTransport)
	}

	sql := CleanSQL(completion.Choices[0].Message.Content)
	if sql == "" {
		return "", fmt.Errorf("%w: sql completion is empty", contractx.ErrTransport)
	}
	return sql, nil
}

// Run is the full admin round-trip: generate, guard, execute, render.
func (a *Agent) Run(ctx context.Context, request string) (string, error) {
	sql, err := a.GenerateSQL(ctx, request)
	if err != nil {
		return "", err
	}
	log.Info().Str("sql", sql).Msg("admin query generated")

	if err := Guard(sql); err != nil {
		return "", err
	}

	rows, err := a.db.RawQuery(ctx, sql)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SQL: %s\n\n%s", sql, RenderRows(rows)), nil
}

// Guard rejects deny-listed statements.
func Guard(sql string) error {
	if m := deniedStatements.FindString(sql); m != "" {
		return fmt.Errorf("%w: statement %q is not allowed", contractx.ErrValidation, strings.ToUpper(m))
	}
	return nil
}

// CleanSQL strips markdown fences and surrounding noise from a model reply.
func CleanSQL(raw string) string {
	sql := strings.TrimSpace(raw)
	if strings.HasPrefix(sql, "```") {
		if idx := strings.IndexByte(sql, '\n'); idx >= 0 {
			sql = sql[idx+1:]
		} else {
			sql = strings.TrimPrefix(sql, "```")
		}
	}
	sql = strings.TrimSuffix(strings.TrimSpace(sql), "```")
	return strings.TrimSpace(sql)
}

// RenderRows formats a query result for a text chat.
func RenderRows(rows contractx.Rows) string {
	if rows.Status != "" {
		return rows.Status
	}
	if len(rows.Values) == 0 {
		return "Пусто (0 строк)"
	}

	var b strings.Builder
	b.WriteString(strings.Join(rows.Columns, " | "))
	for i, row := range rows.Values {
		if i == maxRenderedRows {
			fmt.Fprintf(&b, "\n… ещё %d строк", len(rows.Values)-maxRenderedRows)
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = renderValue(v)
		}
		b.WriteString("\n" + strings.Join(cells, " | "))
	}
	fmt.Fprintf(&b, "\n\nВсего строк: %d", len(rows.Values))
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
