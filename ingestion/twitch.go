package ingestion

import (
	"context"
	"log/slog"
	"stream-lab/contract"
	"stream-lab/domain"
	"strings"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
)

type TwitchConfig struct {
	Username   string
	OAuthToken string
	Channel    string
}

// TwitchSource wraps go-twitch-irc. Chat lines become comments, cheers and
// subscription notices become gifts, JOINs become joins.
// It also implements contract.Replier through Say.
type TwitchSource struct {
	client  *twitchirc.Client
	channel string
	log     *slog.Logger
}

func NewTwitchSource(cfg TwitchConfig, log *slog.Logger) *TwitchSource {
	var client *twitchirc.Client
	if cfg.OAuthToken == "" {
		client = twitchirc.NewAnonymousClient()
	} else {
		client = twitchirc.NewClient(cfg.Username, cfg.OAuthToken)
	}
	return &TwitchSource{client: client, channel: normalizeChannel(cfg.Channel), log: log}
}

func (t *TwitchSource) Name() string { return "TwitchSource:" + t.channel }

// Run connects and blocks until ctx is cancelled or the connection fails.
func (t *TwitchSource) Run(ctx context.Context, in contract.Ingester) error {
	forward := func(raws ...domain.RawEvent) {
		for _, raw := range raws {
			if err := in.Ingest(ctx, raw); err != nil {
				t.log.Debug("Twitch event refused", "kind", raw.Kind, "viewer", raw.ViewerID, "error", err)
			}
		}
	}
	t.client.OnPrivateMessage(func(m twitchirc.PrivateMessage) {
		forward(fromPrivateMessage(m)...)
	})
	t.client.OnUserNoticeMessage(func(m twitchirc.UserNoticeMessage) {
		if raw, ok := fromUserNotice(m); ok {
			forward(raw)
		}
	})
	t.client.OnUserJoinMessage(func(m twitchirc.UserJoinMessage) {
		forward(domain.RawEvent{Kind: "join", ViewerID: strings.ToLower(m.User), DisplayName: m.User, At: time.Now().UTC()})
	})
	t.client.OnConnect(func() {
		t.log.Info("Twitch connected", "channel", t.channel)
	})
	t.client.Join(t.channel)

	errCh := make(chan error, 1)
	go func() {
		errCh <- t.client.Connect()
	}()

	select {
	case <-ctx.Done():
		_ = t.client.Disconnect()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (t *TwitchSource) Reply(_ context.Context, text string) error {
	t.client.Say(t.channel, text)
	return nil
}

func fromPrivateMessage(m twitchirc.PrivateMessage) []domain.RawEvent {
	at := m.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}
	viewer := strings.ToLower(m.User.Name)
	comment := domain.RawEvent{
		Kind:        "comment",
		ViewerID:    viewer,
		DisplayName: m.User.DisplayName,
		Text:        m.Message,
		Moderator:   m.User.Badges["moderator"] > 0,
		Broadcaster: m.User.Badges["broadcaster"] > 0,
		VIP:         m.User.Badges["vip"] > 0,
		At:          at,
	}
	raws := []domain.RawEvent{comment}
	if m.Bits > 0 {
		raws = append(raws, domain.RawEvent{
			Kind:        "gift",
			ViewerID:    viewer,
			DisplayName: m.User.DisplayName,
			GiftName:    "bits",
			Count:       m.Bits,
			Value:       int64(m.Bits),
			At:          at,
		})
	}
	return raws
}

// fromUserNotice maps subscription notices, other notices (raids, rituals) are ignored.
func fromUserNotice(m twitchirc.UserNoticeMessage) (domain.RawEvent, bool) {
	switch m.MsgID {
	case "sub", "resub", "subgift", "submysterygift":
	default:
		return domain.RawEvent{}, false
	}
	at := m.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}
	count := 1
	if m.MsgID == "submysterygift" {
		if n := parseCount(m.MsgParams["msg-param-mass-gift-count"]); n > 0 {
			count = n
		}
	}
	return domain.RawEvent{
		Kind:        "gift",
		ViewerID:    strings.ToLower(m.User.Name),
		DisplayName: m.User.DisplayName,
		GiftName:    m.MsgID,
		Count:       count,
		At:          at,
	}, true
}

func parseCount(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func normalizeChannel(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}
