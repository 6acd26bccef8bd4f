package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mirelabs/converse/internal/conversation"
)

// HistoryLoader supplies a conversation's persisted messages for cold-start
// hydration. *conversation.Store satisfies it.
type HistoryLoader interface {
	GetMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
}

// Manager is the registry of per-conversation windows.
//
// It is the only cross-request shared mutable structure in the core and is
// explicitly constructed and injected — never a package-level singleton. The
// registry map has its own mutex; each window has its own; neither is held
// across a store or gateway call.
type Manager struct {
	loader   HistoryLoader
	capacity int
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// entry guards hydration so it runs at most once per conversation id even
// under concurrent first access. A failed hydration is not cached: the entry
// is removed so a later call can retry, and no empty window ever masks a
// store outage.
type entry struct {
	once   sync.Once
	window *Window
	err    error
}

// NewManager creates a Manager whose windows are capped at 2x windowSize
// messages (one turn is roughly a user/assistant pair).
func NewManager(loader HistoryLoader, windowSize int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:   loader,
		capacity: 2 * windowSize,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// Get returns the working set for the conversation, hydrating it from the
// durable store on first access. Concurrent first access hydrates once; the
// losers block on the same entry and share the result.
func (m *Manager) Get(ctx context.Context, conversationID string) (*Window, error) {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	if !ok {
		e = &entry{}
		m.entries[conversationID] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		msgs, err := m.loader.GetMessages(ctx, conversationID)
		if err != nil {
			e.err = fmt.Errorf("hydrate conversation %s: %w", conversationID, err)
			return
		}
		e.window = newWindow(m.capacity, msgs)
		m.logger.Debug("hydrated conversation window",
			"conversation_id", conversationID,
			"loaded", len(msgs),
			"kept", e.window.Len())
	})

	if e.err != nil {
		// Drop the failed entry so the next caller retries hydration.
		m.mu.Lock()
		if cur, ok := m.entries[conversationID]; ok && cur == e {
			delete(m.entries, conversationID)
		}
		m.mu.Unlock()
		return nil, e.err
	}

	return e.window, nil
}

// Reset evicts the cached window for one conversation.
// Durable data is untouched; the next Get re-hydrates from the store.
func (m *Manager) Reset(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, conversationID)
}

// ResetAll clears every cached window.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
}

// Len reports how many conversations currently have a cached window.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
