// Package tools provides the assistant's built-in tool registry.
//
// Each tool is a named, stateless function with a typed input schema and a
// uniform result envelope: {ok: true, data: ...} on success or
// {ok: false, error: ...} on failure. Business failures (bad operands, an
// unknown timezone, an unreachable weather service) are reported inside the
// envelope so the model can read them and correct course; a Go error is
// reserved for infrastructure problems such as context cancellation.
//
// Tools are grouped by category (Time, Weather, Calculator, Knowledge), each
// category a small struct holding its dependencies. The orchestration loop
// invokes tools directly by name with raw argument maps; the same handlers
// are also registered with Genkit so the model sees their input schemas.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Result is the uniform envelope every tool invocation returns.
// Exactly one of Data or Error is populated, discriminated by OK.
// The orchestrator never interprets Data's shape; it is serialized
// opaquely into the tool message for the model to re-read.
type Result struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// OKResult wraps a successful payload in the result envelope.
func OKResult(data any) Result {
	return Result{OK: true, Data: data}
}

// Errf builds a failed result with a formatted message.
func Errf(format string, args ...any) Result {
	return Result{OK: false, Error: fmt.Sprintf(format, args...)}
}

// Tool pairs a tool's metadata with its execution function. The input type
// is erased so heterogeneous tools can live in one registry; type safety is
// restored at construction time via New.
type Tool struct {
	name        string
	description string

	// invoke is the type-erased execution path used by the orchestrator,
	// which receives arguments as a raw map from the model gateway.
	invoke func(ctx context.Context, args map[string]any) Result

	// define registers the typed handler with Genkit so the model is
	// prompted with the tool's input schema.
	define func(g *genkit.Genkit) ai.Tool
}

// Name returns the tool's unique identifier.
func (t *Tool) Name() string { return t.name }

// Description returns the description the model uses to decide when to call.
func (t *Tool) Description() string { return t.description }

// Invoke executes the tool with raw arguments as proposed by the model.
// Malformed arguments produce an in-envelope error, never a Go error.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) Result {
	return t.invoke(ctx, args)
}

// Define registers the tool with Genkit and returns the framework handle.
func (t *Tool) Define(g *genkit.Genkit) ai.Tool {
	return t.define(g)
}

// New creates a tool from a typed handler.
//
// The handler receives *ai.ToolContext so the same function serves both
// registration paths; direct invocation synthesizes a ToolContext carrying
// the caller's context. Raw argument maps are round-tripped through JSON
// into In, so schema mismatches surface as in-envelope errors the model
// can see and repair.
func New[In any](name, description string, fn func(*ai.ToolContext, In) (Result, error)) *Tool {
	return &Tool{
		name:        name,
		description: description,
		invoke: func(ctx context.Context, args map[string]any) Result {
			var in In
			raw, err := json.Marshal(args)
			if err != nil {
				return Errf("invalid arguments: %v", err)
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return Errf("invalid arguments: %v", err)
			}
			res, err := fn(&ai.ToolContext{Context: ctx}, in)
			if err != nil {
				return Errf("%v", err)
			}
			return res
		},
		define: func(g *genkit.Genkit) ai.Tool {
			return genkit.DefineTool(g, name, description, fn)
		},
	}
}
