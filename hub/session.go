package hub

import (
	"stream-lab/domain"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one connected overlay. The hub only ever pushes to its outbox.
type Session struct {
	ID          uuid.UUID
	ConnectedAt time.Time
	channels    map[domain.Channel]struct{}
	outbox      *Outbox
	pings       chan struct{}
	missed      atomic.Int32
	closed      chan struct{}
	closeOnce   sync.Once
}

func newSession(channels []domain.Channel, outboxSize int, at time.Time) *Session {
	set := make(map[domain.Channel]struct{}, len(channels))
	for _, c := range channels {
		set[c] = struct{}{}
	}
	return &Session{
		ID:          uuid.New(),
		ConnectedAt: at,
		channels:    set,
		outbox:      NewOutbox(outboxSize),
		pings:       make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}
}

func (s *Session) Wants(c domain.Channel) bool {
	_, ok := s.channels[c]
	return ok
}

func (s *Session) Channels() []domain.Channel {
	out := make([]domain.Channel, 0, len(s.channels))
	for _, c := range domain.AllChannels {
		if s.Wants(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Session) Outbox() *Outbox { return s.outbox }

// Pings is signaled when the transport should send a ping frame.
func (s *Session) Pings() <-chan struct{} { return s.pings }

// Pong resets the missed heartbeat counter, any client traffic counts.
func (s *Session) Pong() { s.missed.Store(0) }

func (s *Session) Missed() int { return int(s.missed.Load()) }

func (s *Session) Closed() <-chan struct{} { return s.closed }

func (s *Session) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Session) ping() {
	select {
	case s.pings <- struct{}{}:
	default:
	}
}
