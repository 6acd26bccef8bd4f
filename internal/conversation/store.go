package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists conversations and messages in PostgreSQL.
//
// Every method is a short-lived scoped operation: a single statement or a
// single transaction acquired and released within the call. A transaction is
// never held across a model-gateway round trip.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store on the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// CreateConversation inserts a conversation row.
func (s *Store) CreateConversation(ctx context.Context, id, title string) (*Conversation, error) {
	c := &Conversation{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, title)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, COALESCE(title, ''), created_at, updated_at
	`, id, title).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation %s: %w", id, err)
	}

	s.logger.Debug("created conversation", "id", id, "title", title)
	return c, nil
}

// GetConversation retrieves a conversation by id.
// Returns ErrNotFound if no row exists.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c := &Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(title, ''), created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

// Touch bumps the conversation's last-activity timestamp.
func (s *Store) Touch(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("touch conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetTitle replaces the conversation title. Used by the async title
// generator after the first exchange completes.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE conversations SET title = $2 WHERE id = $1
	`, id, title); err != nil {
		return fmt.Errorf("set title for %s: %w", id, err)
	}
	return nil
}

// ListConversations returns all conversations ordered by recency.
func (s *Store) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(title, ''), created_at, updated_at
		FROM conversations ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c := &Conversation{}
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// DeleteConversation removes a conversation and its messages (CASCADE).
// The orchestration core never calls this; it exists for operational cleanup.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// AddMessage appends a message to the conversation's durable log and bumps
// the conversation timestamp, in one transaction. The stored message (with
// assigned id and timestamp) is returned.
func (s *Store) AddMessage(ctx context.Context, msg *Message) (*Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	var toolCallsJSON []byte
	if len(msg.ToolCalls) > 0 {
		b, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("marshal tool calls: %w", err)
		}
		toolCallsJSON = b
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	stored := *msg
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, content, tool_call_id, tool_name, tool_calls)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id, created_at
	`, msg.ConversationID, string(msg.Role), msg.Content,
		msg.ToolCallID, msg.ToolName, toolCallsJSON,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations SET updated_at = now() WHERE id = $1
	`, msg.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("added message",
		"conversation_id", msg.ConversationID,
		"role", msg.Role,
		"message_id", stored.ID)
	return &stored, nil
}

// GetMessages returns the conversation's full message log ordered by
// (created_at, id) ascending.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, role, content,
		       COALESCE(tool_call_id, ''), COALESCE(tool_name, ''), tool_calls, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m             Message
			role          string
			toolCallsJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content,
			&m.ToolCallID, &m.ToolName, &toolCallsJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		if !m.Role.Valid() {
			return nil, fmt.Errorf("message %d: unknown role %q", m.ID, role)
		}
		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("message %d: unmarshal tool calls: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", conversationID, err)
	}
	return out, nil
}
