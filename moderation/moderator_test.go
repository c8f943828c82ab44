package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const mask = '*'

func newTestModerator(t *testing.T, words ...string) *Moderator {
	t.Helper()
	mod, err := NewModerator(words, mask, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	return mod
}

func TestModerator_Censor(t *testing.T) {
	mod := newTestModerator(t, "scam", "casino", "followbot")

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{"Single word keeps the surrounding spaces", "free followbot here", "free ********* here", []string{"followbot"}},
		{"Every occurrence is reported", "scam scam", "**** ****", []string{"scam", "scam"}},
		// c . 4 . s . 1 . n . 0 spans 11 runes
		{"Leet digits between dots", "best c.4.s.1.n.0 ever", "best *********** ever", []string{"casino"}},
		{"Upper case split by dashes", "S-C-A-M on the C-A-S-I-N-O", "******* on the ***********", []string{"scam", "casino"}},
		{"Accented text around a match", "Ça va, pas de scam ici", "Ça va, pas de **** ici", []string{"scam"}},
		{"Trailing bang is kept", "no casino!", "no ******!", []string{"casino"}},
		{"Clean line", "good stream tonight", "good stream tonight", nil},
		{"Empty line", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
		})
	}
}

func TestModerator_Noise_Only_Words_Are_Ignored(t *testing.T) {
	req := require.New(t)

	// Given a dictionary polluted with punctuation-only entries
	mod := newTestModerator(t, "...", "", "---", "casino")

	// When a line holds a real word
	content, words := mod.Censor("The casino is closed")

	// Then only the real word is masked
	req.Equal("The ****** is closed", content)
	req.Equal([]string{"casino"}, words)

	// And punctuation alone never matches
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}

func TestModerator_Contains(t *testing.T) {
	req := require.New(t)
	mod := newTestModerator(t, "badger", "스팸", "B4DGER")

	req.Equal([]string{"badger"}, mod.Contains("a BADGER and a b-a-d-g-e-r"))
	req.Equal([]string{"스팸"}, mod.Contains("이거 스팸 아님"))
	req.Nil(mod.Contains("hello world"))
}

func TestModerator_Without_Words(t *testing.T) {
	req := require.New(t)
	mod := newTestModerator(t, "", "...")

	content, words := mod.Censor("anything goes")
	req.Equal("anything goes", content)
	req.Nil(words)
	req.Nil(mod.Contains("anything goes"))
}
