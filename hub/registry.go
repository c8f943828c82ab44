package hub

import (
	"stream-lab/domain"
	"sync"

	"github.com/google/uuid"
)

type set map[uuid.UUID]struct{}

// Registry maps overlay channels to the sessions listening on them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	members  map[domain.Channel]set
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		members:  make(map[domain.Channel]set),
	}
}

// SessionsFor resolves the members of a channel into live sessions.
// Returns nil if nobody listens on the channel.
func (r *Registry) SessionsFor(c domain.Channel) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[c]
	if !ok {
		return nil
	}
	var active []*Session
	for id := range members {
		if s, exists := r.sessions[id]; exists {
			active = append(active, s)
		}
	}
	return active
}

// Subscribe registers a session on every channel it asked for.
// Channel sets are created on the fly.
func (r *Registry) Subscribe(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	for c := range s.channels {
		if _, ok := r.members[c]; !ok {
			r.members[c] = make(set)
		}
		r.members[c][s.ID] = struct{}{}
	}
}

// Unsubscribe removes a session and drops channel sets left empty.
func (r *Registry) Unsubscribe(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return false
	}
	delete(r.sessions, s.ID)
	for c := range s.channels {
		if members, ok := r.members[c]; ok {
			delete(members, s.ID)
			if len(members) == 0 {
				delete(r.members, c)
			}
		}
	}
	return true
}

func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	return all
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ChannelCount is the number of channels with at least one listener.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
