package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/mirelabs/converse/internal/knowledge"
	"github.com/mirelabs/converse/internal/log"
)

// fakeSearcher returns canned results and records the query it saw.
type fakeSearcher struct {
	results []knowledge.Result
	err     error

	gotConversationID string
	gotQuery          string
}

func (f *fakeSearcher) Search(_ context.Context, conversationID, query string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	f.gotConversationID = conversationID
	f.gotQuery = query
	return f.results, f.err
}

func TestKnowledgeQuery(t *testing.T) {
	searcher := &fakeSearcher{
		results: []knowledge.Result{
			{Document: knowledge.Document{Content: "First passage."}, Similarity: 0.91},
			{Document: knowledge.Document{Content: "Second passage."}, Similarity: 0.84},
		},
	}
	kb, err := NewKnowledge(searcher, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge() error = %v", err)
	}

	res, err := kb.Query(&ai.ToolContext{Context: context.Background()}, KnowledgeInput{
		Query:          "refund policy",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !res.OK {
		t.Fatalf("Query() error = %q, want success", res.Error)
	}
	if searcher.gotConversationID != "conv-1" {
		t.Errorf("conversation id = %q, want conv-1", searcher.gotConversationID)
	}
	if searcher.gotQuery != "refund policy" {
		t.Errorf("query = %q, want refund policy", searcher.gotQuery)
	}

	data := res.Data.(map[string]any)
	if got := data["found"].(bool); !got {
		t.Error("found = false, want true")
	}
	ctxBlock := data["context"].(string)
	if !strings.Contains(ctxBlock, "First passage.") || !strings.Contains(ctxBlock, "Second passage.") {
		t.Errorf("context missing passages: %q", ctxBlock)
	}
	if !strings.Contains(ctxBlock, "\n---\n") {
		t.Errorf("context missing separator: %q", ctxBlock)
	}
}

func TestKnowledgeQueryNoResults(t *testing.T) {
	kb, err := NewKnowledge(&fakeSearcher{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge() error = %v", err)
	}

	res, err := kb.Query(&ai.ToolContext{Context: context.Background()}, KnowledgeInput{
		Query:          "anything",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !res.OK {
		t.Fatalf("Query() error = %q, want success", res.Error)
	}
	data := res.Data.(map[string]any)
	if got := data["found"].(bool); got {
		t.Error("found = true, want false")
	}
	if got := data["message"].(string); got != "No relevant information found" {
		t.Errorf("message = %q, want %q", got, "No relevant information found")
	}
}

func TestKnowledgeQueryStoreFailure(t *testing.T) {
	kb, err := NewKnowledge(&fakeSearcher{err: errors.New("collection missing")}, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge() error = %v", err)
	}

	res, err := kb.Query(&ai.ToolContext{Context: context.Background()}, KnowledgeInput{
		Query:          "anything",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.OK {
		t.Fatal("Query() = success, want error")
	}
	if res.Error != "No knowledge base found" {
		t.Errorf("error = %q, want %q", res.Error, "No knowledge base found")
	}
}

func TestKnowledgeQueryValidation(t *testing.T) {
	kb, err := NewKnowledge(&fakeSearcher{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewKnowledge() error = %v", err)
	}

	res, err := kb.Query(&ai.ToolContext{Context: context.Background()}, KnowledgeInput{ConversationID: "conv-1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.OK {
		t.Fatal("Query(empty query) = success, want error")
	}

	res, err = kb.Query(&ai.ToolContext{Context: context.Background()}, KnowledgeInput{Query: "anything"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.OK {
		t.Fatal("Query(no conversation id) = success, want error")
	}
}
