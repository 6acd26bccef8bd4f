// Package orchestrator drives the multi-round tool-calling protocol at the
// heart of the assistant.
//
// One call to Chat runs one turn: stream model output, detect proposed tool
// calls, execute them, append their results, and go around again until the
// model produces a final answer with no further calls. Every message is
// persisted durably as it is produced and mirrored into the in-memory
// window, so the durable log and the working set always observe the same
// relative order.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mirelabs/converse/internal/conversation"
	"github.com/mirelabs/converse/internal/gateway"
	"github.com/mirelabs/converse/internal/memory"
	"github.com/mirelabs/converse/internal/tools"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrEmptyMessage rejects blank user input before any side effects.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrMaxRounds aborts a turn whose model never stops calling tools.
	ErrMaxRounds = errors.New("tool-call round limit exceeded")
)

// processingPlaceholder stands in for assistant content when the model
// proposed tool calls without any accompanying text. The durable log never
// stores an empty assistant message.
const processingPlaceholder = "processing"

// fallbackResponse replaces a final answer the model left empty.
const fallbackResponse = "I wasn't able to generate a response. Please try rephrasing your message."

// Store is the durable persistence surface the loop needs. Implemented by
// *conversation.Store; narrowed here so tests can fake it.
type Store interface {
	CreateConversation(ctx context.Context, id, title string) (*conversation.Conversation, error)
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	SetTitle(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, msg *conversation.Message) (*conversation.Message, error)
}

// Memory is the conversation cache surface the loop needs.
// Implemented by *memory.Manager.
type Memory interface {
	Get(ctx context.Context, conversationID string) (*memory.Window, error)
}

// Config holds all dependencies for an Orchestrator.
type Config struct {
	Gateway      gateway.Gateway
	Store        Store
	Memory       Memory
	Registry     *tools.Registry
	SystemPrompt string
	MaxRounds    int
	Logger       *slog.Logger

	// BackgroundContext bounds work that outlives a request, such as
	// title generation. Defaults to context.Background().
	BackgroundContext context.Context
}

func (cfg Config) validate() error {
	if cfg.Gateway == nil {
		return fmt.Errorf("Config.Gateway is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("Config.Store is required")
	}
	if cfg.Memory == nil {
		return fmt.Errorf("Config.Memory is required")
	}
	if cfg.Registry == nil {
		return fmt.Errorf("Config.Registry is required")
	}
	if cfg.MaxRounds <= 0 {
		return fmt.Errorf("Config.MaxRounds must be positive")
	}
	if cfg.Logger == nil {
		return fmt.Errorf("Config.Logger is required")
	}
	return nil
}

// Orchestrator owns the agentic loop. Safe for concurrent use; per-turn
// state lives on the stack and per-conversation state in Memory.
type Orchestrator struct {
	gw           gateway.Gateway
	store        Store
	memory       Memory
	registry     *tools.Registry
	systemPrompt string
	maxRounds    int
	logger       *slog.Logger

	bgCtx context.Context
	wg    sync.WaitGroup
}

// New creates an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	bgCtx := cfg.BackgroundContext
	if bgCtx == nil {
		bgCtx = context.Background()
	}
	return &Orchestrator{
		gw:           cfg.Gateway,
		store:        cfg.Store,
		memory:       cfg.Memory,
		registry:     cfg.Registry,
		systemPrompt: cfg.SystemPrompt,
		maxRounds:    cfg.MaxRounds,
		logger:       cfg.Logger,
		bgCtx:        bgCtx,
	}, nil
}

// Close waits for background work (title generation) to finish.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

// Request is one user turn.
type Request struct {
	// ConversationID selects the conversation; empty starts a new one.
	ConversationID string
	// Message is the user's input.
	Message string
}

// Reply is the completed turn.
type Reply struct {
	ConversationID string
	Content        string
	// Created reports whether this turn started the conversation.
	Created bool
}

// Chat runs one full turn. If onDelta is non-nil it receives each text
// delta as the model streams it; an error from onDelta means the consumer
// is gone and aborts the round without finalizing a partial assistant
// message. Tool results persisted before the abort stand.
func (o *Orchestrator) Chat(ctx context.Context, req Request, onDelta func(string) error) (*Reply, error) {
	input := strings.TrimSpace(req.Message)
	if input == "" {
		return nil, ErrEmptyMessage
	}

	id := req.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	created, err := o.ensureConversation(ctx, id, input)
	if err != nil {
		return nil, err
	}

	window, err := o.memory.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}

	userMsg := conversation.Message{
		ConversationID: id,
		Role:           conversation.RoleUser,
		Content:        input,
	}
	// A retried turn must not duplicate the user message: the window append
	// is idempotent, and persistence follows only a fresh append.
	if window.AppendUserIdempotent(userMsg) {
		if _, err := o.store.AddMessage(ctx, &userMsg); err != nil {
			return nil, fmt.Errorf("persisting user message: %w", err)
		}
	}

	var finalText string
	for round := 1; ; round++ {
		if round > o.maxRounds {
			o.logger.Error("round limit exceeded", "conversation_id", id, "max_rounds", o.maxRounds)
			return nil, fmt.Errorf("%w after %d rounds", ErrMaxRounds, o.maxRounds)
		}

		text, calls, err := o.generate(ctx, window, onDelta)
		if err != nil {
			return nil, err
		}

		if len(calls) == 0 {
			finalText = strings.TrimSpace(text)
			if finalText == "" {
				o.logger.Warn("model returned empty final response", "conversation_id", id)
				finalText = fallbackResponse
			}
			assistant := conversation.Message{
				ConversationID: id,
				Role:           conversation.RoleAssistant,
				Content:        finalText,
			}
			if _, err := o.store.AddMessage(ctx, &assistant); err != nil {
				return nil, fmt.Errorf("persisting assistant message: %w", err)
			}
			window.Append(assistant)
			break
		}

		if err := o.executeTools(ctx, id, window, text, calls); err != nil {
			return nil, err
		}
	}

	if created {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.generateTitle(o.bgCtx, id, input, finalText)
		}()
	}

	return &Reply{ConversationID: id, Content: finalText, Created: created}, nil
}

// ensureConversation creates the conversation on first contact, seeding the
// title with a truncation of the prompt until the generated one lands.
func (o *Orchestrator) ensureConversation(ctx context.Context, id, input string) (bool, error) {
	_, err := o.store.GetConversation(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, conversation.ErrNotFound) {
		return false, fmt.Errorf("looking up conversation %s: %w", id, err)
	}
	if _, err := o.store.CreateConversation(ctx, id, fallbackTitle(input)); err != nil {
		return false, fmt.Errorf("creating conversation %s: %w", id, err)
	}
	o.logger.Info("conversation created", "conversation_id", id)
	return true, nil
}

// generate runs one model round and gathers its text and tool calls.
func (o *Orchestrator) generate(ctx context.Context, window *memory.Window, onDelta func(string) error) (string, []gateway.ToolCall, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errs := o.gw.Stream(streamCtx, o.systemPrompt, window.Messages())

	var sb strings.Builder
	var calls []gateway.ToolCall
	for chunk := range chunks {
		calls = append(calls, chunk.ToolCalls...)
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			// Live emission stops for the round once a tool call is on the
			// table; commentary around an invocation is persisted with the
			// proposing message but never streamed to the consumer.
			if onDelta != nil && len(calls) == 0 {
				if err := onDelta(chunk.Text); err != nil {
					// Consumer disconnected: cancel generation and abandon
					// the round without a final assistant message.
					return "", nil, fmt.Errorf("stream consumer gone: %w", err)
				}
			}
		}
	}

	select {
	case err := <-errs:
		if err != nil {
			return "", nil, fmt.Errorf("model generation failed: %w", err)
		}
	default:
	}
	return sb.String(), calls, nil
}

// executeTools persists the proposing assistant message, then runs every
// proposed call in order, appending and persisting each result before the
// next round. A call naming an unknown tool still yields a paired tool
// message carrying an in-envelope error, so the model always sees a result
// for every call it made.
func (o *Orchestrator) executeTools(ctx context.Context, id string, window *memory.Window, text string, calls []gateway.ToolCall) error {
	content := strings.TrimSpace(text)
	if content == "" {
		content = processingPlaceholder
	}

	proposed := make([]conversation.ToolCall, 0, len(calls))
	for _, call := range calls {
		proposed = append(proposed, conversation.ToolCall{ID: call.ID, Name: call.Name, Args: call.Args})
	}
	assistant := conversation.Message{
		ConversationID: id,
		Role:           conversation.RoleAssistant,
		Content:        content,
		ToolCalls:      proposed,
	}
	if _, err := o.store.AddMessage(ctx, &assistant); err != nil {
		return fmt.Errorf("persisting assistant tool-call message: %w", err)
	}
	window.Append(assistant)

	for _, call := range calls {
		name, args := gateway.CleanToolCall(call.Name, call.Args)
		result := o.invokeTool(ctx, id, name, args)

		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("serializing result of %s: %w", name, err)
		}
		toolMsg := conversation.Message{
			ConversationID: id,
			Role:           conversation.RoleTool,
			Content:        string(raw),
			ToolCallID:     call.ID,
			ToolName:       name,
		}
		if _, err := o.store.AddMessage(ctx, &toolMsg); err != nil {
			return fmt.Errorf("persisting result of %s: %w", name, err)
		}
		window.Append(toolMsg)
	}
	return nil
}

// invokeTool runs one cleaned call. The conversation id is forced into
// knowledge lookups; the model has no legitimate way to know or spoof it.
func (o *Orchestrator) invokeTool(ctx context.Context, conversationID, name string, args map[string]any) tools.Result {
	tool, ok := o.registry.Lookup(name)
	if !ok {
		o.logger.Warn("model proposed unknown tool", "conversation_id", conversationID, "tool", name)
		return tools.Errf("tool not found: %s", name)
	}

	if name == tools.KnowledgeName {
		scoped := make(map[string]any, len(args)+1)
		for k, v := range args {
			scoped[k] = v
		}
		scoped["conversation_id"] = conversationID
		args = scoped
	}

	result := tool.Invoke(ctx, args)
	o.logger.Debug("tool executed", "conversation_id", conversationID, "tool", name, "ok", result.OK)
	return result
}
