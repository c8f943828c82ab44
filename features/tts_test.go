package features

import (
	"context"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type wordList []string

func (w wordList) Filter(text string) []string {
	var hits []string
	for _, word := range w {
		if strings.Contains(strings.ToLower(text), word) {
			hits = append(hits, word)
		}
	}
	return hits
}

func newTTS(f *fixture) *TTS {
	return NewTTS(DefaultTTSConfig(), wordList{"spam"}, f.bus, f.log)
}

func TestTTS_Validates_Text(t *testing.T) {
	req := require.New(t)

	// Given
	f := newFixture()
	tts := newTTS(f)
	u1 := f.viewer("u1", domain.RoleAnyone)
	ctx := context.Background()

	// When
	_, empty := tts.Handle(ctx, inv(u1, "!tts"), f.bus)
	_, long := tts.Handle(ctx, inv(u1, "!tts "+strings.Repeat("가", 101)), f.bus)
	_, link := tts.Handle(ctx, inv(u1, "!tts go to https://example.com now"), f.bus)
	_, bareLink := tts.Handle(ctx, inv(u1, "!say visit example.com"), f.bus)
	_, digits := tts.Handle(ctx, inv(u1, "!tts 1234 5678"), f.bus)
	_, banned := tts.Handle(ctx, inv(u1, "!tts buy SPAM today"), f.bus)

	// Then
	req.ErrorIs(empty, errors.ErrInvalidArgument)
	req.ErrorIs(long, errors.ErrInvalidArgument)
	req.ErrorIs(link, errors.ErrRejected)
	req.ErrorIs(bareLink, errors.ErrRejected)
	req.ErrorIs(digits, errors.ErrRejected)
	req.ErrorIs(banned, errors.ErrRejected)
	req.Nil(tts.Snapshot().Active)
}

func TestTTS_VIP_Requests_Jump_Ahead(t *testing.T) {
	req := require.New(t)

	// Given
	f := newFixture()
	tts := newTTS(f)
	u1 := f.viewer("u1", domain.RoleAnyone)
	u2 := f.viewer("u2", domain.RoleAnyone)
	vip := f.viewer("vip", domain.RoleVIP)
	ctx := context.Background()
	for _, step := range []struct {
		who  domain.Viewer
		text string
	}{{u1, "!tts first"}, {u2, "!tts second"}, {vip, "!tts third"}} {
		res, err := tts.Handle(ctx, inv(step.who, step.text), f.bus)
		req.NoError(err)
		req.Equal(event.StatusQueued, res.Status)
	}

	// Then the VIP line is read first, the others keep their order
	snap := tts.Snapshot()
	req.Nil(snap.Active)
	req.Len(snap.Pending, 3)
	req.Equal("third", snap.Pending[0].Payload)
	req.True(snap.Pending[0].Priority)
	req.Equal("first", snap.Pending[1].Payload)
	req.Equal("second", snap.Pending[2].Payload)
}

func TestTTS_Detects_Language(t *testing.T) {
	req := require.New(t)

	// Given
	f := newFixture()
	tts := newTTS(f)
	u1 := f.viewer("u1", domain.RoleAnyone)

	// When
	res, err := tts.Handle(context.Background(), inv(u1, "!tts 안녕하세요 여러분 오늘 방송에 와주셔서 정말 감사합니다"), f.bus)

	// Then
	req.NoError(err)
	req.Equal("ko", res.Item.Lang)
}

func TestTTS_Skip_Needs_Active_Item(t *testing.T) {
	req := require.New(t)

	// Given
	f := newFixture()
	tts := newTTS(f)
	mod := f.viewer("mod", domain.RoleModerator)

	// When
	_, err := tts.Handle(context.Background(), inv(mod, "!ttsskip"), f.bus)

	// Then
	req.ErrorIs(err, errors.ErrNotFound)
}
