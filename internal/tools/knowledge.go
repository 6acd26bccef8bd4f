package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/mirelabs/converse/internal/knowledge"
)

// KnowledgeName is the tool name for querying uploaded documents.
const KnowledgeName = "query_knowledge_base"

// DefaultKnowledgeTopK is the number of passages returned per query.
const DefaultKnowledgeTopK = 3

// KnowledgeSearcher defines the semantic search behavior the knowledge tool
// needs. Defined here, by the consumer, so any store implementation fits.
type KnowledgeSearcher interface {
	// Search returns the passages most similar to query within one
	// conversation's document collection.
	Search(ctx context.Context, conversationID, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// KnowledgeInput defines input for the query_knowledge_base tool.
//
// ConversationID is never trusted from the model: the orchestrator
// overwrites it with the authenticated conversation before invocation.
type KnowledgeInput struct {
	Query          string `json:"query" jsonschema_description:"The search query to look up in the uploaded documents."`
	ConversationID string `json:"conversation_id,omitempty" jsonschema_description:"Filled in by the server; any model-supplied value is ignored."`
}

// Knowledge holds dependencies for the knowledge query handler.
type Knowledge struct {
	store  KnowledgeSearcher
	logger *slog.Logger
}

// NewKnowledge creates a Knowledge tool group over the given searcher.
func NewKnowledge(store KnowledgeSearcher, logger *slog.Logger) (*Knowledge, error) {
	if store == nil {
		return nil, fmt.Errorf("knowledge searcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Knowledge{store: store, logger: logger}, nil
}

// Tools returns the knowledge tool descriptor.
func (k *Knowledge) Tools() []*Tool {
	return []*Tool{
		New(KnowledgeName,
			"Search through the user's uploaded documents (PDFs, text files) to find "+
				"answers based on specific local knowledge. Use whenever the user asks "+
				"about content they have uploaded.",
			k.Query),
	}
}

// Query performs a semantic search over the conversation's documents and
// returns the matched passages joined into a single context block.
func (k *Knowledge) Query(ctx *ai.ToolContext, input KnowledgeInput) (Result, error) {
	if input.Query == "" {
		return Errf("Query cannot be empty."), nil
	}
	if input.ConversationID == "" {
		return Errf("No knowledge base found"), nil
	}

	results, err := k.store.Search(ctx.Context, input.ConversationID, input.Query,
		knowledge.WithTopK(DefaultKnowledgeTopK))
	if err != nil {
		if ctx.Context != nil && ctx.Context.Err() != nil {
			return Result{}, fmt.Errorf("knowledge search canceled: %w", ctx.Context.Err())
		}
		k.logger.Warn("knowledge search failed", "conversation_id", input.ConversationID, "error", err)
		return Errf("No knowledge base found"), nil
	}
	if len(results) == 0 {
		return OKResult(map[string]any{
			"found":   false,
			"message": "No relevant information found",
		}), nil
	}

	passages := make([]string, 0, len(results))
	for _, res := range results {
		passages = append(passages, res.Document.Content)
	}

	return OKResult(map[string]any{
		"found":   true,
		"matches": len(results),
		"context": "Information found in uploaded documents:\n\n" + strings.Join(passages, "\n---\n"),
	}), nil
}
