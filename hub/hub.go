// Package hub pushes derived state to overlay clients over websockets.
package hub

import (
	"context"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/projection"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeRequestData  = "request_data"
	TypeRecentEvents = "recent_events"
	TypeStats        = "stats"
	TypeWelcome      = "connected"
)

type Config struct {
	OutboxSize     int
	PingInterval   time.Duration
	MaxMissedPongs int
}

func DefaultConfig() Config {
	return Config{OutboxSize: 256, PingInterval: 30 * time.Second, MaxMissedPongs: 3}
}

// snapshotTopics carry full state, their latest envelope is replayed to new sessions.
var snapshotTopics = map[event.Topic]struct{}{
	event.TopicMusicQueueUpdated: {},
	event.TopicTTSQueueUpdated:   {},
	event.TopicStatsUpdated:      {},
	event.TopicGoalUpdated:       {},
}

// ChannelOf maps a delta onto the overlay channel showing it.
func ChannelOf(d event.StateDelta) (domain.Channel, bool) {
	switch d.Topic {
	case event.TopicChatMessage, event.TopicBotReply:
		return domain.ChannelChat, true
	case event.TopicAlertTriggered, event.TopicItemPurchased:
		return domain.ChannelAlert, true
	case event.TopicMusicQueueUpdated:
		return domain.ChannelMusic, true
	case event.TopicTTSQueueUpdated:
		return domain.ChannelTTS, true
	case event.TopicStatsUpdated:
		return domain.ChannelStats, true
	case event.TopicGoalUpdated:
		return domain.ChannelGoals, true
	case event.TopicViewerFlagged, event.TopicAutoTimeout:
		return domain.ChannelModeration, true
	case event.TopicQueueItemFailed:
		if item, ok := d.Data.(domain.QueueItem); ok && item.Kind == domain.QueueTTS {
			return domain.ChannelTTS, true
		}
		return domain.ChannelMusic, true
	}
	return "", false
}

// Hub is the bus sink feeding every overlay session.
type Hub struct {
	cfg      Config
	registry *Registry
	timeline *projection.Timeline
	log      *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	latest map[domain.Channel][]byte
}

func New(cfg Config, timeline *projection.Timeline, log *slog.Logger) *Hub {
	if cfg.MaxMissedPongs <= 0 {
		cfg.MaxMissedPongs = 1
	}
	return &Hub{
		cfg:      cfg,
		registry: NewRegistry(),
		timeline: timeline,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		latest:   make(map[domain.Channel][]byte),
	}
}

func (h *Hub) Name() string { return "Hub" }

// Consume encodes a delta once and enqueues it on every interested session.
func (h *Hub) Consume(_ context.Context, evt event.Event) error {
	d, ok := evt.Delta()
	if !ok {
		return nil
	}
	channel, ok := ChannelOf(d)
	if !ok {
		return nil
	}
	env := domain.Envelope{Type: string(channel), Topic: string(d.Topic), Seq: evt.Seq, At: evt.At, Data: d.Data}
	frame, err := json.Marshal(env)
	if err != nil {
		h.log.Error("Failed to encode overlay envelope", "topic", d.Topic, "seq", evt.Seq, "error", err)
		return err
	}
	if _, snapshot := snapshotTopics[d.Topic]; snapshot {
		h.mu.Lock()
		h.latest[channel] = frame
		h.mu.Unlock()
	}
	if h.timeline != nil {
		h.timeline.Append(env)
	}
	for _, s := range h.registry.SessionsFor(channel) {
		if s.outbox.Push(frame) {
			h.log.Debug("Overlay session lagging, oldest frame dropped", "session", s.ID, "channel", channel)
		}
	}
	return nil
}

// Connect registers a session and queues the cached state of its channels.
func (h *Hub) Connect(channels []domain.Channel) *Session {
	if len(channels) == 0 {
		channels = domain.AllChannels
	}
	s := newSession(channels, h.cfg.OutboxSize, h.now())
	h.registry.Subscribe(s)
	h.push(s, domain.Envelope{Type: TypeWelcome, Data: map[string]any{"session_id": s.ID, "channels": s.Channels()}})
	for _, c := range s.Channels() {
		if frame, ok := h.cached(c); ok {
			s.outbox.Push(frame)
		}
	}
	h.log.Info("Overlay connected", "session", s.ID, "channels", s.Channels())
	return s
}

// Disconnect releases a session, calling it twice is harmless.
func (h *Hub) Disconnect(s *Session) {
	s.close()
	if h.registry.Unsubscribe(s) {
		h.log.Info("Overlay disconnected", "session", s.ID, "dropped", s.outbox.Dropped())
	}
}

// HandleClient reacts to a client message. Unknown types are ignored.
func (h *Hub) HandleClient(s *Session, raw []byte) {
	s.Pong()
	var msg domain.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.Debug("Ignoring malformed overlay message", "session", s.ID, "error", err)
		return
	}
	switch msg.Type {
	case TypePing:
		h.push(s, domain.Envelope{Type: TypePong, At: h.now()})
	case TypePong:
	case TypeRequestData:
		h.requestData(s, msg.DataType)
	default:
		h.log.Debug("Ignoring overlay message", "session", s.ID, "type", msg.Type)
	}
}

func (h *Hub) requestData(s *Session, dataType string) {
	switch dataType {
	case TypeRecentEvents:
		var recent []domain.Envelope
		if h.timeline != nil {
			recent = h.timeline.Recent()
		}
		h.push(s, domain.Envelope{Type: TypeRecentEvents, Data: recent})
		return
	case TypeStats:
		dataType = string(domain.ChannelStats)
	}
	if frame, ok := h.cached(domain.Channel(dataType)); ok {
		s.outbox.Push(frame)
		return
	}
	h.log.Debug("No cached data", "session", s.ID, "data_type", dataType)
}

// PingAll asks the transport of every session to ping and counts the ping as missed
// until a pong comes back. Sessions that reached the limit are closed and released.
func (h *Hub) PingAll(_ time.Time) int {
	closed := 0
	for _, s := range h.registry.All() {
		if s.Missed() >= h.cfg.MaxMissedPongs {
			h.log.Warn("Overlay session missed too many pongs", "session", s.ID, "missed", s.Missed())
			h.Disconnect(s)
			closed++
			continue
		}
		s.missed.Add(1)
		s.ping()
	}
	return closed
}

func (h *Hub) Sessions() int { return h.registry.Len() }

func (h *Hub) cached(c domain.Channel) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	frame, ok := h.latest[c]
	return frame, ok
}

func (h *Hub) push(s *Session, env domain.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.log.Error("Failed to encode overlay envelope", "type", env.Type, "error", err)
		return
	}
	s.outbox.Push(frame)
}
