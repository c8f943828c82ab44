package domain

import (
	"strings"
	"time"
)

// Channel is an overlay topic a display client can subscribe to.
type Channel string

const (
	ChannelChat       Channel = "chat"
	ChannelAlert      Channel = "alert"
	ChannelMusic      Channel = "music"
	ChannelTTS        Channel = "tts"
	ChannelStats      Channel = "stats"
	ChannelGoals      Channel = "goals"
	ChannelModeration Channel = "moderation"
)

var AllChannels = []Channel{
	ChannelChat, ChannelAlert, ChannelMusic, ChannelTTS,
	ChannelStats, ChannelGoals, ChannelModeration,
}

// ParseChannels reads a comma separated list, unknown names are ignored.
// An empty list means every channel.
func ParseChannels(s string) []Channel {
	if strings.TrimSpace(s) == "" {
		return AllChannels
	}
	known := make(map[Channel]struct{}, len(AllChannels))
	for _, c := range AllChannels {
		known[c] = struct{}{}
	}
	var res []Channel
	seen := make(map[Channel]struct{})
	for _, part := range strings.Split(s, ",") {
		c := Channel(strings.ToLower(strings.TrimSpace(part)))
		if _, ok := known[c]; !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		res = append(res, c)
	}
	if len(res) == 0 {
		return AllChannels
	}
	return res
}

// Envelope is the wire form of everything sent to an overlay.
// Broadcast state uses the channel name as Type, Topic tells which change produced it.
// Protocol frames (connected, pong, recent_events) leave Topic empty.
type Envelope struct {
	Type  string    `json:"type"`
	Topic string    `json:"topic,omitempty"`
	Seq   uint64    `json:"seq,omitempty"`
	At    time.Time `json:"at,omitempty"`
	Data  any       `json:"data,omitempty"`
}

// ClientMessage is what an overlay may send.
type ClientMessage struct {
	Type     string `json:"type"`
	DataType string `json:"data_type,omitempty"`
}
