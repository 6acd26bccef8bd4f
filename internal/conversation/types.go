// Package conversation defines the durable conversation model and its
// PostgreSQL store. A conversation is an append-only message log plus
// metadata; ordering is always (created_at, id) so messages created within
// the same clock tick keep their insertion order.
package conversation

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Role identifies the author of a message. The set is closed: code that
// replays history must switch over all three and reject anything else.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model-proposed invocation of a named tool.
// ID pairs the proposal with the tool message that answers it.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Conversation is a named sequence of turns.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message belongs to exactly one conversation.
//
// ToolCalls is set only on assistant messages that propose invocations.
// ToolCallID and ToolName are set only on tool messages; ToolCallID must
// answer a call proposed by the immediately preceding assistant message or
// the model backend will reject the history on the next round.
type Message struct {
	ID             int64
	ConversationID string
	Role           Role
	Content        string
	ToolCallID     string
	ToolName       string
	ToolCalls      []ToolCall
	CreatedAt      time.Time
}

// Validate checks the role-dependent field invariants.
func (m *Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	switch m.Role {
	case RoleUser:
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return errors.New("user message cannot carry tool calls")
		}
	case RoleAssistant:
		if m.ToolCallID != "" {
			return errors.New("assistant message cannot answer a tool call")
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return errors.New("tool message requires a tool call id")
		}
		if len(m.ToolCalls) > 0 {
			return errors.New("tool message cannot propose tool calls")
		}
	}
	return nil
}
