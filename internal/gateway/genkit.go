package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/mirelabs/converse/internal/conversation"
)

// Genkit is the production Gateway backed by a Genkit model.
type Genkit struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
	tools       []ai.ToolRef
	logger      *slog.Logger
}

// NewGenkit creates a Gateway over the given Genkit instance.
// tools are the references advertised to the model on every generation.
func NewGenkit(g *genkit.Genkit, modelName string, temperature float64, tools []ai.ToolRef, logger *slog.Logger) (*Genkit, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Genkit{
		g:           g,
		modelName:   modelName,
		temperature: temperature,
		tools:       tools,
		logger:      logger,
	}, nil
}

// Stream implements Gateway. Tool execution is withheld from Genkit
// (WithReturnToolRequests) so the orchestration loop stays in control of
// running tools and persisting their results.
func (gw *Genkit) Stream(ctx context.Context, system string, history []conversation.Message) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)

		messages, err := toModelMessages(history)
		if err != nil {
			errs <- err
			return
		}

		resp, err := genkit.Generate(ctx, gw.g,
			ai.WithModelName(gw.modelName),
			ai.WithSystem(system),
			ai.WithMessages(messages...),
			ai.WithTools(gw.tools...),
			ai.WithConfig(&ai.GenerationCommonConfig{Temperature: gw.temperature}),
			ai.WithReturnToolRequests(true),
			ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
				text := chunk.Text()
				if text == "" {
					return nil
				}
				select {
				case chunks <- Chunk{Text: text}:
					return nil
				case <-cbCtx.Done():
					return cbCtx.Err()
				}
			}),
		)
		if err != nil {
			errs <- fmt.Errorf("generate: %w", err)
			return
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			return
		}
		calls := make([]ToolCall, 0, len(requests))
		for _, req := range requests {
			calls = append(calls, ToolCall{
				ID:   callID(req.Ref),
				Name: req.Name,
				Args: decodeArgs(req.Input),
			})
		}
		select {
		case chunks <- Chunk{ToolCalls: calls}:
		case <-ctx.Done():
			errs <- ctx.Err()
		}
	}()

	return chunks, errs
}

// Complete implements Gateway with a single non-streaming generation.
func (gw *Genkit) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, gw.g,
		ai.WithModelName(gw.modelName),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Text(), nil
}

// callID returns the provider's correlation ref, or a fresh one when the
// provider did not supply any.
func callID(ref string) string {
	if ref != "" {
		return ref
	}
	return uuid.NewString()
}

// decodeArgs normalizes a tool request's input into an argument map.
func decodeArgs(input any) map[string]any {
	switch v := input.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err == nil {
			return m
		}
		return map[string]any{"input": v}
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return map[string]any{}
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return map[string]any{}
		}
		return m
	}
}

// toModelMessages converts durable conversation messages into the wire
// shape the model expects. Tool results are replayed as RoleTool messages
// paired to the assistant's requests by ref.
func toModelMessages(history []conversation.Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case conversation.RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))

		case conversation.RoleAssistant:
			var parts []*ai.Part
			if m.Content != "" {
				parts = append(parts, ai.NewTextPart(m.Content))
			}
			for _, call := range m.ToolCalls {
				parts = append(parts, ai.NewToolRequestPart(&ai.ToolRequest{
					Ref:   call.ID,
					Name:  call.Name,
					Input: call.Args,
				}))
			}
			if len(parts) == 0 {
				parts = append(parts, ai.NewTextPart(""))
			}
			out = append(out, &ai.Message{Role: ai.RoleModel, Content: parts})

		case conversation.RoleTool:
			out = append(out, &ai.Message{
				Role: ai.RoleTool,
				Content: []*ai.Part{
					ai.NewToolResponsePart(&ai.ToolResponse{
						Ref:    m.ToolCallID,
						Name:   m.ToolName,
						Output: decodeToolOutput(m.Content),
					}),
				},
			})

		default:
			return nil, fmt.Errorf("unsupported role %q in history", m.Role)
		}
	}
	return out, nil
}

// decodeToolOutput re-inflates a persisted tool result for replay. Results
// are stored as JSON; anything unparseable is passed through as text.
func decodeToolOutput(content string) any {
	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out
	}
	return content
}
