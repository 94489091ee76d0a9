// Package typing relays local typing activity outward and fans inbound
// typing/presence events out to registered sinks.
package typing

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clutchchat/clutch/internal/protocol"
)

// DefaultInterval is the minimum gap between typing signals per channel.
const DefaultInterval = 3 * time.Second

// Sender writes frames to the streaming connection.
type Sender interface {
	Send(protocol.Frame) error
}

// TypingFunc receives an inbound typing event.
type TypingFunc func(channelID, userID string)

// PresenceFunc receives an inbound presence event.
type PresenceFunc func(userID, status string)

// Relay throttles outbound typing signals to at most one per channel per
// interval, so keystroke bursts do not flood the connection.
type Relay struct {
	sender   Sender
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time

	typingFns   []TypingFunc
	presenceFns []PresenceFunc
}

// NewRelay creates a relay with the given minimum interval; zero or negative
// means DefaultInterval.
func NewRelay(sender Sender, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Relay{
		sender:   sender,
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Typing emits a typing frame for the channel unless one was emitted within
// the interval. A closed connection is not an error here; the signal is
// advisory and simply dropped.
func (r *Relay) Typing(channelID string) {
	r.mu.Lock()
	now := r.now()
	if last, ok := r.last[channelID]; ok && now.Sub(last) < r.interval {
		r.mu.Unlock()
		return
	}
	r.last[channelID] = now
	r.mu.Unlock()

	if err := r.sender.Send(protocol.Typing(channelID)); err != nil {
		log.Debug().Err(err).Str("channel", channelID).Msg("typing: signal not sent")
	}
}

// OnTyping registers a sink for inbound typing events.
func (r *Relay) OnTyping(fn TypingFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typingFns = append(r.typingFns, fn)
}

// OnPresence registers a sink for inbound presence events.
func (r *Relay) OnPresence(fn PresenceFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presenceFns = append(r.presenceFns, fn)
}

// ReceiveTyping delivers an inbound typing event to all sinks.
func (r *Relay) ReceiveTyping(channelID, userID string) {
	r.mu.Lock()
	fns := append([]TypingFunc(nil), r.typingFns...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(channelID, userID)
	}
}

// ReceivePresence delivers an inbound presence event to all sinks.
func (r *Relay) ReceivePresence(userID, status string) {
	r.mu.Lock()
	fns := append([]PresenceFunc(nil), r.presenceFns...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(userID, status)
	}
}
