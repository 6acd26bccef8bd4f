package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mirelabs/converse/internal/conversation"
	"github.com/mirelabs/converse/internal/orchestrator"
	"github.com/mirelabs/converse/internal/testutil"
)

type fakeChatter struct {
	deltas []string
	reply  *orchestrator.Reply
	err    error

	gotReq orchestrator.Request
}

func (f *fakeChatter) Chat(_ context.Context, req orchestrator.Request, onDelta func(string) error) (*orchestrator.Reply, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.deltas {
		if onDelta != nil {
			if err := onDelta(d); err != nil {
				return nil, err
			}
		}
	}
	return f.reply, nil
}

type fakeReader struct {
	convs    map[string]*conversation.Conversation
	messages map[string][]conversation.Message
}

func (f *fakeReader) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return c, nil
}

func (f *fakeReader) GetMessages(_ context.Context, id string) ([]conversation.Message, error) {
	return f.messages[id], nil
}

func (f *fakeReader) ListConversations(_ context.Context) ([]*conversation.Conversation, error) {
	out := make([]*conversation.Conversation, 0, len(f.convs))
	for _, c := range f.convs {
		out = append(out, c)
	}
	return out, nil
}

type fakeResetter struct {
	ids []string
}

func (f *fakeResetter) Reset(id string) {
	f.ids = append(f.ids, id)
}

func newTestServer(t *testing.T, chatter Chatter, reader ConversationReader, cache CacheResetter) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:        slog.New(slog.DiscardHandler),
		Chatter:       chatter,
		Conversations: reader,
		Cache:         cache,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

// decodeData unwraps the {"data": ...} envelope into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v\nbody: %s", err, w.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v\nbody: %s", err, w.Body.String())
	}
}

func TestChatStream(t *testing.T) {
	chatter := &fakeChatter{
		deltas: []string{"Hello ", "there."},
		reply:  &orchestrator.Reply{ConversationID: "c1", Content: "Hello there.", Created: true},
	}
	srv := newTestServer(t, chatter, &fakeReader{}, &fakeResetter{})

	body := strings.NewReader(`{"conversationId": "c1", "message": "hi"}`)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", body)

	srv.Handler().ServeHTTP(w, r)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	if chatter.gotReq.Message != "hi" || chatter.gotReq.ConversationID != "c1" {
		t.Errorf("Chat() received %+v, want message hi in c1", chatter.gotReq)
	}

	events := testutil.ParseSSEEvents(t, w.Body.String())

	chunks := testutil.FindAllEvents(events, EventChunk)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunk events, want 2", len(chunks))
	}
	var streamed strings.Builder
	for _, e := range chunks {
		var p ChunkPayload
		if err := json.Unmarshal([]byte(e.Data), &p); err != nil {
			t.Fatalf("decode chunk: %v", err)
		}
		streamed.WriteString(p.Text)
	}
	if streamed.String() != "Hello there." {
		t.Errorf("streamed text = %q, want %q", streamed.String(), "Hello there.")
	}

	done := testutil.FindEvent(events, EventDone)
	if done == nil {
		t.Fatal("expected done event")
	}
	var dp DonePayload
	if err := json.Unmarshal([]byte(done.Data), &dp); err != nil {
		t.Fatalf("decode done: %v", err)
	}
	if dp.Response != "Hello there." || dp.ConversationID != "c1" || !dp.Created {
		t.Errorf("done payload = %+v, want response %q in c1 created", dp, "Hello there.")
	}
}

func TestChatStreamInvalidBody(t *testing.T) {
	srv := newTestServer(t, &fakeChatter{}, &fakeReader{}, &fakeResetter{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))

	srv.Handler().ServeHTTP(w, r)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	e := testutil.FindEvent(events, EventError)
	if e == nil {
		t.Fatal("expected error event")
	}
	var p ErrorPayload
	if err := json.Unmarshal([]byte(e.Data), &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if p.Code != "invalid_request" {
		t.Errorf("error code = %q, want invalid_request", p.Code)
	}
}

func TestChatStreamEmptyMessage(t *testing.T) {
	chatter := &fakeChatter{err: orchestrator.ErrEmptyMessage}
	srv := newTestServer(t, chatter, &fakeReader{}, &fakeResetter{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "  "}`))

	srv.Handler().ServeHTTP(w, r)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	e := testutil.FindEvent(events, EventError)
	if e == nil {
		t.Fatal("expected error event")
	}
	var p ErrorPayload
	if err := json.Unmarshal([]byte(e.Data), &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if p.Code != "empty_message" {
		t.Errorf("error code = %q, want empty_message", p.Code)
	}
}

func TestHistory(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	reader := &fakeReader{
		convs: map[string]*conversation.Conversation{
			"c1": {ID: "c1", Title: "Weather in Lisbon", CreatedAt: now, UpdatedAt: now},
		},
		messages: map[string][]conversation.Message{
			"c1": {
				{ID: 1, ConversationID: "c1", Role: conversation.RoleUser, Content: "weather in Lisbon?", CreatedAt: now},
				{ID: 2, ConversationID: "c1", Role: conversation.RoleAssistant, Content: "processing", CreatedAt: now,
					ToolCalls: []conversation.ToolCall{{ID: "call-1", Name: "get_weather_data", Args: map[string]any{"location": "Lisbon"}}}},
				{ID: 3, ConversationID: "c1", Role: conversation.RoleTool, Content: `{"ok":true}`, ToolCallID: "call-1", ToolName: "get_weather_data", CreatedAt: now},
				{ID: 4, ConversationID: "c1", Role: conversation.RoleAssistant, Content: "It is sunny.", CreatedAt: now},
			},
		},
	}
	srv := newTestServer(t, &fakeChatter{}, reader, &fakeResetter{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/chat/c1", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d, want %d\nbody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Conversation conversationItem `json:"conversation"`
		Messages     []messageItem    `json:"messages"`
	}
	decodeData(t, w, &resp)

	if resp.Conversation.Title != "Weather in Lisbon" {
		t.Errorf("conversation title = %q, want %q", resp.Conversation.Title, "Weather in Lisbon")
	}
	if len(resp.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(resp.Messages))
	}
	if resp.Messages[1].Role != "assistant" || len(resp.Messages[1].ToolCalls) != 1 {
		t.Errorf("messages[1] = %+v, want assistant with one tool call", resp.Messages[1])
	}
	if resp.Messages[2].ToolCallID != "call-1" || resp.Messages[2].ToolName != "get_weather_data" {
		t.Errorf("messages[2] = %+v, want tool message answering call-1", resp.Messages[2])
	}
}

func TestHistoryNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeChatter{}, &fakeReader{}, &fakeResetter{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/chat/missing", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("history status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var envelope struct {
		Error errorBody `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Errorf("error code = %q, want not_found", envelope.Error.Code)
	}
}

func TestListConversations(t *testing.T) {
	now := time.Now().UTC()
	reader := &fakeReader{
		convs: map[string]*conversation.Conversation{
			"c1": {ID: "c1", Title: "First", CreatedAt: now, UpdatedAt: now},
			"c2": {ID: "c2", Title: "Second", CreatedAt: now, UpdatedAt: now},
		},
	}
	srv := newTestServer(t, &fakeChatter{}, reader, &fakeResetter{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/chats", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", w.Code, http.StatusOK)
	}
	var items []conversationItem
	decodeData(t, w, &items)
	if len(items) != 2 {
		t.Errorf("got %d conversations, want 2", len(items))
	}
}

func TestReset(t *testing.T) {
	reader := &fakeReader{
		convs: map[string]*conversation.Conversation{"c1": {ID: "c1", Title: "First"}},
	}
	cache := &fakeResetter{}
	srv := newTestServer(t, &fakeChatter{}, reader, cache)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat/c1/reset", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want %d\nbody: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(cache.ids) != 1 || cache.ids[0] != "c1" {
		t.Errorf("cache resets = %v, want [c1]", cache.ids)
	}
}

func TestResetUnknownConversation(t *testing.T) {
	cache := &fakeResetter{}
	srv := newTestServer(t, &fakeChatter{}, &fakeReader{}, cache)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat/missing/reset", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("reset status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if len(cache.ids) != 0 {
		t.Errorf("cache resets = %v, want none", cache.ids)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeChatter{}, &fakeReader{}, &fakeResetter{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	var status map[string]string
	decodeData(t, w, &status)
	if status["status"] != "ok" {
		t.Errorf("health status = %q, want ok", status["status"])
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	handler := recoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/chats", nil)

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestNewServerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{"missing chatter", ServerConfig{Conversations: &fakeReader{}, Cache: &fakeResetter{}}},
		{"missing conversations", ServerConfig{Chatter: &fakeChatter{}, Cache: &fakeResetter{}}},
		{"missing cache", ServerConfig{Chatter: &fakeChatter{}, Conversations: &fakeReader{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Fatal("NewServer() expected error")
			}
		})
	}
}
