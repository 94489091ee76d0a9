// Package timeline produces the single ordered, duplicate-free view of
// messages for the active channel, merging a REST-fetched historical page
// with the live tail pushed over the stream.
package timeline

import (
	"sync"

	"github.com/clutchchat/clutch/internal/models"
)

// Timeline holds the message sequence for one active channel, oldest first.
// History pages arrive newest-first and are reversed on apply. Live messages
// that arrive before the history page resolves are buffered and merged once
// it does, so a pushed message can never precede the page that should come
// before it.
type Timeline struct {
	mu        sync.Mutex
	channelID string
	loaded    bool
	messages  []models.Message
	pending   []models.Message
	seen      map[string]struct{}
}

// New returns an empty timeline with no active channel.
func New() *Timeline {
	return &Timeline{seen: make(map[string]struct{})}
}

// Reset discards all contents and re-keys the timeline to channelID. The
// previous channel's messages are not retained in memory.
func (t *Timeline) Reset(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channelID = channelID
	t.loaded = false
	t.messages = nil
	t.pending = nil
	t.seen = make(map[string]struct{})
}

// ChannelID returns the channel the timeline is keyed to.
func (t *Timeline) ChannelID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelID
}

// Loaded reports whether the historical page has been applied.
func (t *Timeline) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

// ApplyHistory installs a newest-first historical page, reversed to oldest
// first, then replays any live messages buffered while the page was in
// flight. A page for a channel that is no longer active is a no-op; the
// return value reports whether the page was applied.
func (t *Timeline) ApplyHistory(channelID string, newestFirst []models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channelID != t.channelID {
		return false
	}

	t.messages = make([]models.Message, 0, len(newestFirst)+len(t.pending))
	t.seen = make(map[string]struct{}, len(newestFirst)+len(t.pending))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		t.insert(newestFirst[i])
	}
	for _, m := range t.pending {
		t.insert(m)
	}
	t.pending = nil
	t.loaded = true
	return true
}

// AppendLive inserts a live-pushed message at the tail. Messages for another
// channel and duplicate identifiers are dropped; before history has loaded
// the message is buffered instead. Returns whether the message was accepted
// (buffered counts as accepted).
func (t *Timeline) AppendLive(msg models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.ChannelID != t.channelID {
		return false
	}
	if _, dup := t.seen[msg.ID]; dup {
		return false
	}
	if !t.loaded {
		for _, p := range t.pending {
			if p.ID == msg.ID {
				return false
			}
		}
		t.pending = append(t.pending, msg)
		return true
	}
	t.insert(msg)
	return true
}

// Messages returns a snapshot copy of the sequence, oldest first. Buffered
// live messages are not visible until the history page applies.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of visible messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// insert appends with dedup; callers hold the lock.
func (t *Timeline) insert(m models.Message) {
	if _, dup := t.seen[m.ID]; dup {
		return
	}
	t.seen[m.ID] = struct{}{}
	t.messages = append(t.messages, m)
}
