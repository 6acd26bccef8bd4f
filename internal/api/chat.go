package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirelabs/converse/internal/conversation"
	"github.com/mirelabs/converse/internal/orchestrator"
)

// Chatter runs one assistant turn, streaming text deltas to onDelta.
type Chatter interface {
	Chat(ctx context.Context, req orchestrator.Request, onDelta func(string) error) (*orchestrator.Reply, error)
}

// ConversationReader is the read surface the history endpoints need.
type ConversationReader interface {
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
	ListConversations(ctx context.Context) ([]*conversation.Conversation, error)
}

// CacheResetter evicts a conversation's in-memory window.
type CacheResetter interface {
	Reset(conversationID string)
}

// chatHandler serves the chat endpoints.
type chatHandler struct {
	chatter Chatter
	store   ConversationReader
	cache   CacheResetter
	logger  *slog.Logger
}

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // partial response text
	EventDone  = "done"  // turn completed successfully
	EventError = "error" // error occurred during the turn
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when a turn completes.
type DonePayload struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
	Created        bool   `json:"created"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// stream handles POST /api/chat. The reply streams as SSE while the turn
// runs; client disconnect cancels the request context, which aborts the
// round without finalizing a partial assistant message.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "invalid_request",
			Message: "invalid request body",
		})
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "conversation_id", req.ConversationID)

	reply, err := h.chatter.Chat(ctx, orchestrator.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
	}, func(delta string) error {
		return writeEvent(w, flusher, EventChunk, ChunkPayload{Text: delta})
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "conversation_id", req.ConversationID)
			return
		}
		h.streamError(w, flusher, err)
		return
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:       reply.Content,
		ConversationID: reply.ConversationID,
		Created:        reply.Created,
	})

	h.logger.Info("SSE stream completed", "conversation_id", reply.ConversationID)
}

// streamError maps turn errors to SSE error events.
func (h *chatHandler) streamError(w io.Writer, f http.Flusher, err error) {
	code := "stream_error"

	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		code = "empty_message"
	case errors.Is(err, orchestrator.ErrMaxRounds):
		code = "max_rounds_exceeded"
	}

	h.logger.Error("chat turn failed", "error", err, "code", code)
	_ = writeEvent(w, f, EventError, ErrorPayload{
		Code:    code,
		Message: err.Error(),
	})
}

// conversationItem is the JSON shape of a conversation summary.
type conversationItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// messageItem is the JSON shape of a persisted message.
type messageItem struct {
	ID         int64                   `json:"id"`
	Role       string                  `json:"role"`
	Content    string                  `json:"content"`
	ToolCallID string                  `json:"toolCallId,omitempty"`
	ToolName   string                  `json:"toolName,omitempty"`
	ToolCalls  []conversation.ToolCall `json:"toolCalls,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// history handles GET /api/chat/{id}.
func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conv, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		h.mapStoreError(w, err)
		return
	}

	messages, err := h.store.GetMessages(r.Context(), id)
	if err != nil {
		h.mapStoreError(w, err)
		return
	}

	items := make([]messageItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, messageItem{
			ID:         m.ID,
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
			ToolCalls:  m.ToolCalls,
			CreatedAt:  m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": toConversationItem(conv),
		"messages":     items,
	}, h.logger)
}

// list handles GET /api/chats.
func (h *chatHandler) list(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.ListConversations(r.Context())
	if err != nil {
		h.mapStoreError(w, err)
		return
	}

	items := make([]conversationItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, toConversationItem(c))
	}

	writeJSON(w, http.StatusOK, items, h.logger)
}

// reset handles POST /api/chat/{id}/reset. Only the cached window is
// evicted; persisted history is untouched and the next turn re-hydrates.
func (h *chatHandler) reset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.store.GetConversation(r.Context(), id); err != nil {
		h.mapStoreError(w, err)
		return
	}

	h.cache.Reset(id)
	h.logger.Info("conversation cache reset", "conversation_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"}, h.logger)
}

// mapStoreError translates store errors into HTTP responses.
func (h *chatHandler) mapStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	h.logger.Error("store operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
}

func toConversationItem(c *conversation.Conversation) conversationItem {
	return conversationItem{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
