// Package knowledge stores and searches uploaded document passages with
// vector similarity, one collection per conversation.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// Store wraps chromem-go with per-conversation collections.
//
// Store is safe for concurrent use by multiple goroutines. Collections are
// created lazily on first Add; Search against a conversation that never
// uploaded anything returns no results rather than an error.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
	logger  *slog.Logger
}

// New creates (or opens) a persistent vector store rooted at dir.
func New(dir string, embedFn chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if embedFn == nil {
		return nil, fmt.Errorf("embedding function is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create knowledge dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	return &Store{db: db, embedFn: embedFn, logger: logger}, nil
}

// NewEphemeral creates an in-memory store, used by tests.
func NewEphemeral(embedFn chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if embedFn == nil {
		return nil, fmt.Errorf("embedding function is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{db: chromem.NewDB(), embedFn: embedFn, logger: logger}, nil
}

// collectionName scopes documents to one conversation.
func collectionName(conversationID string) string {
	return "chat_" + conversationID
}

// Add indexes a document into the conversation's collection.
func (s *Store) Add(ctx context.Context, conversationID string, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if doc.Content == "" {
		return fmt.Errorf("document content is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.db.GetOrCreateCollection(collectionName(conversationID), nil, s.embedFn)
	if err != nil {
		return fmt.Errorf("open collection for %s: %w", conversationID, err)
	}
	if err := col.AddDocument(ctx, chromem.Document{
		ID:       doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
	}); err != nil {
		return fmt.Errorf("index document %q: %w", doc.ID, err)
	}

	s.logger.Debug("indexed document",
		"conversation_id", conversationID, "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search returns the passages most similar to query within one
// conversation's collection, ordered by descending similarity.
func (s *Store) Search(ctx context.Context, conversationID, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collectionName(conversationID), s.embedFn)
	if col == nil {
		return nil, nil
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	k := cfg.topK
	if k > count {
		k = count
	}

	hits, err := col.Query(ctx, query, k, cfg.filter, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection for %s: %w", conversationID, err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Document: Document{
				ID:       h.ID,
				Content:  h.Content,
				Metadata: h.Metadata,
			},
			Similarity: h.Similarity,
		})
	}
	return results, nil
}

// Drop removes a conversation's collection entirely, used when the
// conversation is deleted.
func (s *Store) Drop(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName(conversationID)); err != nil {
		return fmt.Errorf("drop collection for %s: %w", conversationID, err)
	}
	return nil
}
