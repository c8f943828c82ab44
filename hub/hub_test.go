package hub

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/projection"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func newHub(cfg Config) *Hub {
	return New(cfg, projection.NewTimeline(10), logs.GetLoggerFromLevel(slog.LevelDebug))
}

func delta(seq uint64, topic event.Topic, data any) event.Event {
	e := event.NewDelta(topic, data)
	e.Seq, e.At = seq, t0
	return e
}

func frames(s *Session) []domain.Envelope {
	var out []domain.Envelope
	for {
		f, ok := s.outbox.Pop()
		if !ok {
			return out
		}
		var env domain.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
}

func types(envs []domain.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

func topics(envs []domain.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Topic)
	}
	return out
}

func TestChannelOf_Maps_Every_Broadcast_Topic(t *testing.T) {
	req := require.New(t)
	cases := []struct {
		delta event.StateDelta
		want  domain.Channel
	}{
		{event.StateDelta{Topic: event.TopicChatMessage}, domain.ChannelChat},
		{event.StateDelta{Topic: event.TopicBotReply}, domain.ChannelChat},
		{event.StateDelta{Topic: event.TopicAlertTriggered}, domain.ChannelAlert},
		{event.StateDelta{Topic: event.TopicItemPurchased}, domain.ChannelAlert},
		{event.StateDelta{Topic: event.TopicMusicQueueUpdated}, domain.ChannelMusic},
		{event.StateDelta{Topic: event.TopicTTSQueueUpdated}, domain.ChannelTTS},
		{event.StateDelta{Topic: event.TopicStatsUpdated}, domain.ChannelStats},
		{event.StateDelta{Topic: event.TopicGoalUpdated}, domain.ChannelGoals},
		{event.StateDelta{Topic: event.TopicViewerFlagged}, domain.ChannelModeration},
		{event.StateDelta{Topic: event.TopicAutoTimeout}, domain.ChannelModeration},
		{event.StateDelta{Topic: event.TopicQueueItemFailed, Data: domain.QueueItem{Kind: domain.QueueTTS}}, domain.ChannelTTS},
		{event.StateDelta{Topic: event.TopicQueueItemFailed, Data: domain.QueueItem{Kind: domain.QueueMusic}}, domain.ChannelMusic},
	}
	for _, c := range cases {
		t.Run(string(c.delta.Topic), func(t *testing.T) {
			got, ok := ChannelOf(c.delta)
			req.True(ok)
			req.Equal(c.want, got)
		})
	}
	_, ok := ChannelOf(event.StateDelta{Topic: event.TopicPointsChanged})
	req.False(ok)
}

func TestHub_Routes_Deltas_To_Subscribed_Sessions(t *testing.T) {
	req := require.New(t)
	hub := newHub(DefaultConfig())
	ctx := context.Background()

	// Given one music overlay and one chat overlay
	music := hub.Connect([]domain.Channel{domain.ChannelMusic})
	chat := hub.Connect([]domain.Channel{domain.ChannelChat})
	frames(music)
	frames(chat)

	// When
	req.NoError(hub.Consume(ctx, delta(1, event.TopicMusicQueueUpdated, domain.QueueSnapshot{Kind: domain.QueueMusic})))
	req.NoError(hub.Consume(ctx, delta(2, event.TopicChatMessage, domain.ChatLine{Content: "hi"})))
	req.NoError(hub.Consume(ctx, delta(3, event.TopicPointsChanged, event.PointsChanged{})))
	req.NoError(hub.Consume(ctx, event.Event{Kind: event.KindComment, Payload: event.Comment{Text: "raw"}}))

	// Then
	got := frames(music)
	req.Equal([]string{"music"}, types(got))
	req.Equal([]string{"music_queue_updated"}, topics(got))
	req.Equal(uint64(1), got[0].Seq)
	chatFrames := frames(chat)
	req.Equal([]string{"chat"}, types(chatFrames))
	req.Equal([]string{"chat_message"}, topics(chatFrames))
}

func TestHub_New_Session_Gets_Cached_Snapshots(t *testing.T) {
	req := require.New(t)
	hub := newHub(DefaultConfig())
	ctx := context.Background()

	// Given state was broadcast before anyone connected
	req.NoError(hub.Consume(ctx, delta(1, event.TopicMusicQueueUpdated, domain.QueueSnapshot{Kind: domain.QueueMusic})))
	req.NoError(hub.Consume(ctx, delta(2, event.TopicMusicQueueUpdated, domain.QueueSnapshot{Kind: domain.QueueMusic, Votes: 1})))
	req.NoError(hub.Consume(ctx, delta(3, event.TopicChatMessage, domain.ChatLine{Content: "hi"})))

	// When an overlay connects to music and chat
	s := hub.Connect([]domain.Channel{domain.ChannelChat, domain.ChannelMusic})

	// Then it receives a welcome and the latest music snapshot only
	got := frames(s)
	req.Equal([]string{TypeWelcome, "music"}, types(got))
	req.Equal("music_queue_updated", got[1].Topic)
	req.Equal(uint64(2), got[1].Seq)
}

func TestHub_Client_Messages(t *testing.T) {
	req := require.New(t)
	hub := newHub(DefaultConfig())
	ctx := context.Background()
	req.NoError(hub.Consume(ctx, delta(1, event.TopicStatsUpdated, domain.StatsSnapshot{Viewers: 3})))
	req.NoError(hub.Consume(ctx, delta(2, event.TopicChatMessage, domain.ChatLine{Content: "one"})))
	s := hub.Connect([]domain.Channel{domain.ChannelChat})
	frames(s)

	// When
	hub.HandleClient(s, []byte(`{"type":"ping"}`))
	hub.HandleClient(s, []byte(`{"type":"request_data","data_type":"stats"}`))
	hub.HandleClient(s, []byte(`{"type":"request_data","data_type":"recent_events"}`))
	hub.HandleClient(s, []byte(`{"type":"request_data","data_type":"goals"}`))
	hub.HandleClient(s, []byte(`{"type":"dance"}`))
	hub.HandleClient(s, []byte(`not json`))

	// Then
	got := frames(s)
	req.Equal([]string{TypePong, "stats", TypeRecentEvents}, types(got))
	recent, ok := got[2].Data.([]any)
	req.True(ok)
	req.Len(recent, 2)
}

func TestHub_Saturated_Session_Keeps_Latest(t *testing.T) {
	req := require.New(t)
	hub := newHub(Config{OutboxSize: 4, PingInterval: time.Second, MaxMissedPongs: 3})
	ctx := context.Background()
	s := hub.Connect([]domain.Channel{domain.ChannelChat})
	frames(s)

	// When far more events arrive than the outbox holds
	for seq := uint64(1); seq <= 100; seq++ {
		req.NoError(hub.Consume(ctx, delta(seq, event.TopicChatMessage, domain.ChatLine{Content: "spam"})))
	}

	// Then the session still gets the most recent one
	got := frames(s)
	req.Len(got, 4)
	req.Equal(uint64(100), got[3].Seq)
	req.Equal(uint64(96), s.outbox.Dropped())
}

func TestHub_Heartbeat_Closes_Silent_Sessions(t *testing.T) {
	req := require.New(t)
	hub := newHub(Config{OutboxSize: 4, PingInterval: time.Second, MaxMissedPongs: 2})
	silent := hub.Connect(nil)
	alive := hub.Connect(nil)

	// When the alive session answers every ping
	closed := 0
	for i := 0; i < 3; i++ {
		closed += hub.PingAll(t0)
		alive.Pong()
	}

	// Then only the silent one is released
	req.Equal(1, closed)
	req.True(silent.IsClosed())
	req.False(alive.IsClosed())
	req.Equal(1, hub.Sessions())
	select {
	case <-alive.Pings():
	default:
		req.Fail("Alive session should have been pinged")
	}
}

func TestHub_ServeWS_End_To_End(t *testing.T) {
	req := require.New(t)
	hub := newHub(DefaultConfig())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	// Given an overlay connected on the music channel
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?channels=music"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome domain.Envelope
	req.NoError(conn.ReadJSON(&welcome))
	req.Equal(TypeWelcome, welcome.Type)

	// When a music snapshot is broadcast and the client pings
	req.Eventually(func() bool { return hub.Sessions() == 1 }, time.Second, 10*time.Millisecond)
	req.NoError(hub.Consume(context.Background(), delta(9, event.TopicMusicQueueUpdated, domain.QueueSnapshot{Kind: domain.QueueMusic})))
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	// Then both arrive in order
	var update, pong domain.Envelope
	req.NoError(conn.ReadJSON(&update))
	req.Equal("music", update.Type)
	req.Equal("music_queue_updated", update.Topic)
	req.Equal(uint64(9), update.Seq)
	req.NoError(conn.ReadJSON(&pong))
	req.Equal(TypePong, pong.Type)

	// When the client leaves
	_ = conn.Close()

	// Then the session is released
	req.Eventually(func() bool { return hub.Sessions() == 0 }, time.Second, 10*time.Millisecond)
}
