package features

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

var (
	ttsNames    = []string{"tts", "say"}
	ttsModNames = []string{"ttsskip"}
	urlPattern  = regexp.MustCompile(`(?i)(https?://|www\.)\S+|\S+\.(com|net|org|io|kr|gg|tv)\b`)
)

// WordFilter finds banned words in a text.
type WordFilter interface {
	Filter(text string) []string
}

type TTSConfig struct {
	Queue       QueueConfig
	MinRunes    int
	MaxRunes    int
	DefaultLang string
}

func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		Queue:       QueueConfig{Kind: domain.QueueTTS, Capacity: 50, History: 20, MaxAttempts: 2},
		MinRunes:    1,
		MaxRunes:    100,
		DefaultLang: "ko",
	}
}

// TTS queues text to be spoken. Draining is paced by synthesis completions.
type TTS struct {
	cfg    TTSConfig
	queue  *workQueue
	filter WordFilter
	names  nameSet
	log    *slog.Logger
}

func NewTTS(cfg TTSConfig, filter WordFilter, pub contract.Publisher, log *slog.Logger) *TTS {
	cfg.Queue.Kind = domain.QueueTTS
	return &TTS{
		cfg:    cfg,
		queue:  newWorkQueue(cfg.Queue, event.TopicTTSQueueUpdated, pub, log),
		filter: filter,
		names:  newNameSet(ttsNames, ttsModNames),
		log:    log,
	}
}

func (t *TTS) Routes() []Route {
	return []Route{
		{Handler: t, MinRole: domain.RoleAnyone, Names: ttsNames},
		{Handler: t, MinRole: domain.RoleModerator, Names: ttsModNames},
	}
}

func (t *TTS) CanHandle(name string) bool { return t.names.has(name) }

func (t *TTS) Handle(_ context.Context, inv domain.Invocation, _ contract.Publisher) (contract.Result, error) {
	if inv.Name == "ttsskip" {
		skipped, err := t.queue.skip()
		if err != nil {
			return contract.Result{}, err
		}
		return contract.Result{Message: "🔇 TTS skipped", Item: &skipped}, nil
	}

	text := strings.TrimSpace(inv.Rest)
	if err := t.validate(text); err != nil {
		return contract.Result{}, err
	}
	if words := t.filter.Filter(text); len(words) > 0 {
		t.log.Debug("TTS text refused by word filter", "viewer_id", inv.Issuer.ID, "words", words)
		return contract.Result{}, fmt.Errorf("text contains banned words: %w", errors.ErrRejected)
	}
	item, err := t.queue.enqueue(inv.Issuer, text, t.language(text), inv.Issuer.Role() >= domain.RoleVIP)
	if err != nil {
		return contract.Result{}, err
	}
	return contract.Result{Status: event.StatusQueued, Message: "🔊 TTS queued", Item: &item}, nil
}

func (t *TTS) validate(text string) error {
	n := utf8.RuneCountInString(text)
	if n < t.cfg.MinRunes || n > t.cfg.MaxRunes {
		return fmt.Errorf("text must hold %d to %d characters: %w", t.cfg.MinRunes, t.cfg.MaxRunes, errors.ErrInvalidArgument)
	}
	if urlPattern.MatchString(text) {
		return fmt.Errorf("links are not read aloud: %w", errors.ErrRejected)
	}
	if onlyDigits(text) {
		return fmt.Errorf("numbers only: %w", errors.ErrRejected)
	}
	return nil
}

func (t *TTS) language(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return t.cfg.DefaultLang
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return t.cfg.DefaultLang
}

func onlyDigits(text string) bool {
	seen := false
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		if !unicode.IsDigit(r) {
			return false
		}
		seen = true
	}
	return seen
}

func (t *TTS) Snapshot() domain.QueueSnapshot { return t.queue.Snapshot() }
