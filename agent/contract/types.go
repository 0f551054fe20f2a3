package contract

// Role identifies the author of a conversation entry, both in the persisted
// chat log and in the provider message slice.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// HistoryMessage is one prior turn entry fed back to the provider as context.
// Only user/assistant entries are replayed; tool traffic stays in the log.
type HistoryMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// LogEntry is an append-only record of the conversation, including tool
// invocations made on the customer's behalf.
type LogEntry struct {
	SessionID int64          `json:"session_id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolArgs  map[string]any `json:"tool_args,omitempty"`
}
