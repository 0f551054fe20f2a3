package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
	loopx "github.com/aquadoks/sales-agent/agent/loop"
)

type turnInput struct {
	ExternalChatID string
	Text           string
}

type turnOutput struct {
	Reply string
}

type turnRunnable = compose.Runnable[turnInput, turnOutput]

// turnState is threaded through the graph nodes of one turn.
type turnState struct {
	input     turnInput
	sessionID int64
	history   []contractx.HistoryMessage
	result    loopx.Result
	degraded  bool
}

func (a *Agent) compileTurnGraph(ctx context.Context) (turnRunnable, error) {
	graph := compose.NewGraph[turnInput, turnOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in turnInput) (*turnState, error) {
			if strings.TrimSpace(in.ExternalChatID) == "" {
				return nil, fmt.Errorf("%w: external chat id is empty", contractx.ErrValidation)
			}
			if strings.TrimSpace(in.Text) == "" {
				return nil, fmt.Errorf("%w: message text is empty", contractx.ErrValidation)
			}
			return &turnState{input: in}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("open_session",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			sessionID, err := a.store.GetOrCreateSession(ctx, a.channel, st.input.ExternalChatID)
			if err != nil {
				return nil, err
			}
			st.sessionID = sessionID
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node open_session: %w", err)
	}

	if err := graph.AddLambdaNode("load_history",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			history, err := a.store.History(ctx, st.sessionID, a.historyLimit)
			if err != nil {
				return nil, err
			}
			st.history = history
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_history: %w", err)
	}

	if err := graph.AddLambdaNode("log_user_message",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			a.logEntry(ctx, contractx.LogEntry{
				SessionID: st.sessionID,
				Role:      contractx.RoleUser,
				Content:   st.input.Text,
			})
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node log_user_message: %w", err)
	}

	if err := graph.AddLambdaNode("run_loop",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			// Tool handlers see the chat and session ids through the
			// context, so a created order can be linked back to this
			// session and tool calls land in its log.
			ctx = contractx.WithChatID(ctx, st.input.ExternalChatID)
			ctx = contractx.WithSessionID(ctx, st.sessionID)
			result, err := a.loop.Run(ctx, st.history, st.input.Text)
			if errors.Is(err, contractx.ErrTransport) {
				// The turn degrades to the fixed apology; other turns and the
				// ledger are unaffected.
				log.Error().Err(err).Int64("session_id", st.sessionID).Msg("provider transport failure")
				a.logEntry(ctx, contractx.LogEntry{
					SessionID: st.sessionID,
					Role:      contractx.RoleAssistant,
					Content:   fmt.Sprintf("Error: %v", err),
				})
				st.result = loopx.Result{Reply: TransportApology}
				st.degraded = true
				return st, nil
			}
			if err != nil {
				return nil, err
			}
			st.result = result
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_loop: %w", err)
	}

	if err := graph.AddLambdaNode("log_reply",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			// The degraded path already logged its error marker.
			if !st.degraded {
				a.logEntry(ctx, contractx.LogEntry{
					SessionID: st.sessionID,
					Role:      contractx.RoleAssistant,
					Content:   st.result.Reply,
				})
			}
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node log_reply: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (turnOutput, error) {
			return turnOutput{Reply: st.result.Reply}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "open_session"},
		{"open_session", "load_history"},
		{"load_history", "log_user_message"},
		{"log_user_message", "run_loop"},
		{"run_loop", "log_reply"},
		{"log_reply", "finalize_reply"},
		{"finalize_reply", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("agent.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
