package ingestion

import (
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func TestToEvent(t *testing.T) {
	cases := []struct {
		name    string
		raw     domain.RawEvent
		payload any
	}{
		{"comment", domain.RawEvent{Kind: "comment", ViewerID: "u1", Text: "!music lofi beats", Moderator: true, At: t0}, event.Comment{Text: "!music lofi beats", Moderator: true}},
		{"gift defaults to one unit", domain.RawEvent{Kind: "gift", ViewerID: "u1", GiftName: "rose", At: t0}, event.Gift{Name: "rose", Count: 1}},
		{"gift", domain.RawEvent{Kind: "gift", ViewerID: "u1", GiftName: "rose", Count: 12, Value: 120, At: t0}, event.Gift{Name: "rose", Count: 12, Value: 120}},
		{"follow", domain.RawEvent{Kind: "follow", ViewerID: "u1", At: t0}, event.Follow{}},
		{"like", domain.RawEvent{Kind: "like", ViewerID: "u1", Count: 30, At: t0}, event.Like{Count: 30}},
		{"join", domain.RawEvent{Kind: "join", ViewerID: "u1", At: t0}, event.Join{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			evt, err := ToEvent(c.raw)
			req.NoError(err)
			req.Equal(event.Kind(c.raw.Kind), evt.Kind)
			req.Equal(domain.ViewerID("u1"), evt.ViewerID)
			req.Equal(t0, evt.At)
			req.Zero(evt.Seq)
			req.Equal(c.payload, evt.Payload)
		})
	}
}

func TestToEvent_Rejects_Invalid_Raw(t *testing.T) {
	cases := []struct {
		name string
		raw  domain.RawEvent
	}{
		{"unknown kind", domain.RawEvent{Kind: "raid", ViewerID: "u1"}},
		{"missing viewer", domain.RawEvent{Kind: "follow"}},
		{"empty comment", domain.RawEvent{Kind: "comment", ViewerID: "u1"}},
		{"huge comment", domain.RawEvent{Kind: "comment", ViewerID: "u1", Text: strings.Repeat("a", 2001)}},
		{"negative count", domain.RawEvent{Kind: "like", ViewerID: "u1", Count: -1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ToEvent(c.raw)
			require.ErrorIs(t, err, errors.ErrInvalidArgument)
		})
	}
}

func TestToEvent_Stamps_Missing_Time(t *testing.T) {
	req := require.New(t)
	evt, err := ToEvent(domain.RawEvent{Kind: "follow", ViewerID: "u1"})
	req.NoError(err)
	req.False(evt.At.IsZero())
}
