// Package gateway adapts the model backend to the orchestration loop.
//
// The loop consumes a minimal surface: a streaming generation call that
// yields text deltas and finishes with any tool calls the model proposed,
// plus a one-shot completion used for title generation. Everything
// provider-specific stays behind the Gateway interface.
package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mirelabs/converse/internal/conversation"
)

// ToolCall is a model-proposed tool invocation.
type ToolCall struct {
	// ID correlates the call with its eventual tool result message.
	ID string
	// Name is the tool to invoke, after cleanup.
	Name string
	// Args are the decoded invocation arguments.
	Args map[string]any
}

// Chunk is one unit of streamed model output. A chunk carries a text
// fragment, proposed tool calls, or both; consumers must tolerate text
// and tool calls interleaving in any order within a generation.
type Chunk struct {
	Text      string
	ToolCalls []ToolCall
}

// Gateway is the loop's view of the model backend.
type Gateway interface {
	// Stream generates a response to the history under the given system
	// prompt. The chunk channel is closed when generation finishes; a
	// mid-stream backend failure is delivered on the error channel and
	// terminates the stream.
	Stream(ctx context.Context, system string, history []conversation.Message) (<-chan Chunk, <-chan error)

	// Complete runs a single non-streaming prompt and returns its text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// CleanToolCall repairs a malformed tool call in which the model fused the
// JSON arguments onto the tool name, e.g. `get_current_time{"timezone":"UTC"}`.
// The name is truncated at the first '{' and the severed suffix is parsed
// as JSON; explicitly supplied arguments win over parsed ones on conflict.
// A suffix that is not a JSON object leaves the call untouched — the name
// is taken literally rather than guessed at. Well-formed calls pass
// through unchanged.
func CleanToolCall(name string, args map[string]any) (string, map[string]any) {
	brace := strings.IndexByte(name, '{')
	if brace < 0 {
		return name, args
	}

	var embedded map[string]any
	if err := json.Unmarshal([]byte(name[brace:]), &embedded); err != nil {
		return name, args
	}
	cleaned := strings.TrimSpace(name[:brace])

	merged := make(map[string]any, len(embedded)+len(args))
	for k, v := range embedded {
		merged[k] = v
	}
	for k, v := range args {
		merged[k] = v
	}
	return cleaned, merged
}
