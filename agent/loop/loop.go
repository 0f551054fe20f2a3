package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
)

// State names the phase a turn is in. One Loop run walks
// Requesting -> (ToolsRequested -> Dispatching -> Requesting)* and ends in
// Completed or RoundLimitReached.
type State string

const (
	StateRequesting        State = "requesting"
	StateToolsRequested    State = "tools_requested"
	StateDispatching       State = "dispatching"
	StateCompleted         State = "completed"
	StateRoundLimitReached State = "round_limit_reached"
)

// DefaultFallbackReply is the fixed answer for a turn that exhausts its
// rounds without the provider settling on text.
const DefaultFallbackReply = "Извините, не удалось обработать запрос. Попробуйте переформулировать."

// Executor runs one tool call and always produces a conversational string.
type Executor func(ctx context.Context, name, rawArgs string) string

type Config struct {
	MaxRounds int `envconfig:"MAX_ROUNDS" split_words:"true" default:"5"`
}

// Loop drives the bounded negotiation with the tool-calling model. It holds
// no per-turn state; each Run is independent.
type Loop struct {
	model        einomodel.ToolCallingChatModel
	execute      Executor
	systemPrompt func() string
	maxRounds    int
	fallback     string
}

func New(
	chatModel einomodel.ToolCallingChatModel,
	tools []*schema.ToolInfo,
	execute Executor,
	systemPrompt func() string,
	cfg Config,
) (*Loop, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if execute == nil {
		return nil, errors.New("tool executor is required")
	}
	if systemPrompt == nil {
		return nil, errors.New("system prompt source is required")
	}

	bound, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrTransport, err)
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 5
	}

	return &Loop{
		model:        bound,
		execute:      execute,
		systemPrompt: systemPrompt,
		maxRounds:    maxRounds,
		fallback:     DefaultFallbackReply,
	}, nil
}

type Result struct {
	Reply  string
	State  State
	Rounds int
}

// Run resolves one conversational turn. Provider failures wrap ErrTransport
// and abort without retry; the round ceiling converts to the fixed fallback
// reply instead of an unbounded exchange.
func (l *Loop) Run(ctx context.Context, history []contractx.HistoryMessage, userText string) (Result, error) {
	if strings.TrimSpace(userText) == "" {
		return Result{}, fmt.Errorf("%w: user message is empty", contractx.ErrValidation)
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(l.systemPrompt()))
	for _, h := range history {
		switch h.Role {
		case contractx.RoleUser:
			messages = append(messages, schema.UserMessage(h.Content))
		case contractx.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(h.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(userText))

	state := StateRequesting
	for round := 1; round <= l.maxRounds; round++ {
		msg, err := l.model.Generate(ctx, messages)
		if err != nil {
			return Result{State: state, Rounds: round},
				fmt.Errorf("%w: provider round %d: %v", contractx.ErrTransport, round, err)
		}
		if msg == nil {
			return Result{State: state, Rounds: round},
				fmt.Errorf("%w: provider returned empty message", contractx.ErrTransport)
		}

		if len(msg.ToolCalls) == 0 {
			log.Debug().Int("round", round).Msg("turn completed")
			return Result{Reply: msg.Content, State: StateCompleted, Rounds: round}, nil
		}

		state = StateToolsRequested
		messages = append(messages, msg)

		// Dispatch strictly in the order the provider listed the calls; a
		// later call may depend on the side effects of an earlier one.
		state = StateDispatching
		for _, call := range msg.ToolCalls {
			name := strings.TrimSpace(call.Function.Name)
			result := l.execute(ctx, name, call.Function.Arguments)
			messages = append(messages, schema.ToolMessage(result, call.ID, schema.WithToolName(name)))
		}

		log.Debug().Int("round", round).Int("tool_calls", len(msg.ToolCalls)).Msg("tool round dispatched")
		state = StateRequesting
	}

	log.Warn().Int("rounds", l.maxRounds).Msg("tool round limit reached")
	return Result{Reply: l.fallback, State: StateRoundLimitReached, Rounds: l.maxRounds}, nil
}
