// Package memory holds the in-memory working set of each conversation: a
// bounded, thread-safe message window used as model context. The durable log
// in the conversation store is the record; this window is a lossy view of its
// tail, capped at twice the configured window size.
package memory

import (
	"sync"

	"github.com/mirelabs/converse/internal/conversation"
)

// Window is the bounded message window for one conversation.
// It is owned by the Manager entry for that conversation id.
//
// The mutex guards only the slice; callers must never invoke blocking
// gateway or store operations while holding it.
type Window struct {
	mu  sync.Mutex
	cap int
	msg []conversation.Message
}

// newWindow creates a window capped at capacity messages, seeded with the
// tail of initial (older entries beyond the cap are dropped).
func newWindow(capacity int, initial []conversation.Message) *Window {
	w := &Window{cap: capacity}
	if n := len(initial); n > capacity {
		initial = initial[n-capacity:]
	}
	w.msg = append(w.msg, initial...)
	return w
}

// Append adds a message and applies the cap, dropping the oldest entries.
// Eviction is purely recency-based: a sliding window, not LRU.
func (w *Window) Append(msg conversation.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msg = append(w.msg, msg)
	if len(w.msg) > w.cap {
		w.msg = w.msg[len(w.msg)-w.cap:]
	}
}

// AppendUserIdempotent appends a user message unless the most recent entry is
// already that exact user turn (a retry must not duplicate it).
// Reports whether the message was appended.
func (w *Window) AppendUserIdempotent(msg conversation.Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.msg); n > 0 {
		last := w.msg[n-1]
		if last.Role == conversation.RoleUser && last.Content == msg.Content {
			return false
		}
	}

	w.msg = append(w.msg, msg)
	if len(w.msg) > w.cap {
		w.msg = w.msg[len(w.msg)-w.cap:]
	}
	return true
}

// Messages returns a copy of the window contents, oldest first.
func (w *Window) Messages() []conversation.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]conversation.Message, len(w.msg))
	copy(out, w.msg)
	return out
}

// Len returns the current number of messages in the window.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msg)
}
