// Package session owns the active-channel lifecycle: join/leave control
// frames on switch, the channel directory, and the historical fetch that
// seeds the timeline.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/clutchchat/clutch/internal/models"
	"github.com/clutchchat/clutch/internal/protocol"
	"github.com/clutchchat/clutch/internal/timeline"
	"github.com/clutchchat/clutch/internal/transport"
	"github.com/clutchchat/clutch/internal/typing"
)

// DefaultHistoryLimit is the historical page size fetched on channel switch.
const DefaultHistoryLimit = 50

// FrameSender writes frames to the streaming connection.
type FrameSender interface {
	Send(protocol.Frame) error
}

// Directory is the REST surface the session consumes.
type Directory interface {
	ListChannels(ctx context.Context, serverID string) ([]models.Channel, error)
	ListMessages(ctx context.Context, channelID string, limit int) ([]models.Message, error)
}

// Cache retains live messages keyed by channel, beyond the in-memory
// timeline of the active channel.
type Cache interface {
	Put(models.Message) error
}

// Options configures a Session.
type Options struct {
	HistoryLimit int
	Cache        Cache
	Relay        *typing.Relay
}

// Session is the single source of truth for which channel is active. All
// channel/message state mutation flows through its operations.
type Session struct {
	sender FrameSender
	dir    Directory
	tl     *timeline.Timeline
	cache  Cache
	relay  *typing.Relay
	limit  int

	// switchMu serializes the leave/reset/join sequence so two concurrent
	// switches cannot interleave their control frames.
	switchMu sync.Mutex

	mu       sync.Mutex
	current  *models.Channel
	gen      uint64
	listGen  uint64
	channels []models.Channel

	wg sync.WaitGroup
}

// New creates a session over the given frame sender and REST directory.
func New(sender FrameSender, dir Directory, tl *timeline.Timeline, opts Options) *Session {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Session{
		sender: sender,
		dir:    dir,
		tl:     tl,
		cache:  opts.Cache,
		relay:  opts.Relay,
		limit:  limit,
	}
}

// SetCurrentChannel makes ch the active channel: leave_channel for the
// previous one, clear the timeline, join_channel, then fetch the historical
// page asynchronously. The fetch result is applied only if this selection is
// still current when it resolves. Selecting the already-active channel is a
// no-op.
func (s *Session) SetCurrentChannel(ctx context.Context, ch models.Channel) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.current != nil && s.current.ID == ch.ID {
		s.mu.Unlock()
		return
	}
	prev := s.current
	cur := ch
	s.current = &cur
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if prev != nil {
		if err := s.sender.Send(protocol.LeaveChannel(prev.ID)); err != nil {
			log.Warn().Err(err).Str("channel", prev.ID).Msg("session: leave not sent")
		}
	}
	s.tl.Reset(ch.ID)
	if err := s.sender.Send(protocol.JoinChannel(ch.ID)); err != nil {
		log.Warn().Err(err).Str("channel", ch.ID).Msg("session: join not sent")
	}

	s.wg.Add(1)
	go s.loadHistory(ctx, ch.ID, gen)
}

// Current returns a copy of the active channel, or nil if none is active.
func (s *Session) Current() *models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cur := *s.current
	return &cur
}

// RefreshChannels fetches the channel directory for a server and installs it
// unless a newer refresh was issued while this one was in flight; a stale
// response is discarded silently. The fetch error, if any, is returned.
func (s *Session) RefreshChannels(ctx context.Context, serverID string) error {
	s.mu.Lock()
	s.listGen++
	gen := s.listGen
	s.mu.Unlock()

	channels, err := s.dir.ListChannels(ctx, serverID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.listGen {
		log.Debug().Str("server", serverID).Msg("session: discarding stale channel list")
		return nil
	}
	s.channels = channels
	return nil
}

// Channels returns a snapshot of the last installed channel directory.
func (s *Session) Channels() []models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// HandleFrame routes an inbound frame: message frames feed the timeline and
// write-through cache, typing/presence frames feed the relay. Register with
// Transport.OnFrame.
func (s *Session) HandleFrame(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeMessage:
		msg := *f.Message
		if s.cache != nil {
			if err := s.cache.Put(msg); err != nil {
				log.Warn().Err(err).Str("message", msg.ID).Msg("session: cache write failed")
			}
		}
		s.tl.AppendLive(msg)
	case protocol.TypeTyping:
		if s.relay != nil {
			s.relay.ReceiveTyping(f.ChannelID, f.UserID)
		}
	case protocol.TypePresence:
		if s.relay != nil {
			s.relay.ReceivePresence(f.UserID, f.Status)
		}
	default:
		log.Debug().Str("type", string(f.Type)).Msg("session: ignoring frame")
	}
}

// HandleStateChange rejoins the active channel and reloads its history after
// the transport reopens. Register with Transport.OnStateChange.
func (s *Session) HandleStateChange(st transport.State) {
	if st != transport.StateOpen {
		return
	}
	// Hold switchMu across the rejoin so a concurrent SetCurrentChannel
	// cannot land between the snapshot and the Reset and be clobbered by a
	// reset keyed to the old channel.
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	ch := *s.current
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if err := s.sender.Send(protocol.JoinChannel(ch.ID)); err != nil {
		log.Warn().Err(err).Str("channel", ch.ID).Msg("session: rejoin not sent")
	}
	s.tl.Reset(ch.ID)
	s.wg.Add(1)
	go s.loadHistory(context.Background(), ch.ID, gen)
}

// Wait blocks until in-flight history fetches have resolved.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) loadHistory(ctx context.Context, channelID string, gen uint64) {
	defer s.wg.Done()

	page, err := s.dir.ListMessages(ctx, channelID, s.limit)

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		log.Debug().Str("channel", channelID).Msg("session: discarding stale history page")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("session: history fetch failed")
		// Open the gate with an empty page so buffered live messages are
		// not held back indefinitely.
		page = nil
	}
	s.tl.ApplyHistory(channelID, page)
}
