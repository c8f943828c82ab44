package features

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

var infoNames = []string{"help", "commands", "time", "stats"}

// CommandLister is satisfied by the router.
type CommandLister interface {
	Commands(role domain.Role) []string
}

// StatsProvider is satisfied by the analytics aggregator.
type StatsProvider interface {
	Snapshot() domain.StatsSnapshot
}

// Info answers informational commands and the static catalog commands.
type Info struct {
	commands map[string]string
	lister   CommandLister
	stats    StatsProvider
	started  time.Time
	now      func() time.Time
}

func NewInfo(catalog map[string]string, lister CommandLister, stats StatsProvider, started time.Time) *Info {
	commands := make(map[string]string, len(catalog))
	for name, reply := range catalog {
		name = strings.ToLower(strings.TrimPrefix(name, "!"))
		if lo.Contains(infoNames, name) {
			continue
		}
		commands[name] = reply
	}
	return &Info{
		commands: commands,
		lister:   lister,
		stats:    stats,
		started:  started,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (i *Info) Routes() []Route {
	names := append(lo.Keys(i.commands), infoNames...)
	sort.Strings(names)
	return []Route{{Handler: i, MinRole: domain.RoleAnyone, Names: names}}
}

func (i *Info) CanHandle(name string) bool {
	if _, ok := i.commands[name]; ok {
		return true
	}
	return lo.Contains(infoNames, name)
}

func (i *Info) Handle(_ context.Context, inv domain.Invocation, _ contract.Publisher) (contract.Result, error) {
	switch inv.Name {
	case "help", "commands":
		names := lo.Map(i.lister.Commands(inv.Issuer.Role()), func(n string, _ int) string { return "!" + n })
		return contract.Result{Message: "🤖 " + strings.Join(names, ", ")}, nil
	case "time":
		return contract.Result{Message: "⏱️ Live for " + strings.TrimSpace(humanize.RelTime(i.started, i.now(), "", ""))}, nil
	case "stats":
		s := i.stats.Snapshot()
		return contract.Result{Message: fmt.Sprintf("📊 messages %d | gifts %d | follows %d | viewers %d",
			s.TotalMessages, s.TotalGifts, s.NewFollows, s.Viewers)}, nil
	}
	if reply, ok := i.commands[inv.Name]; ok {
		return contract.Result{Message: reply}, nil
	}
	return contract.Result{}, errors.ErrUnknownCommand
}

// AutoResponder answers keywords found in admitted chat.
type AutoResponder struct {
	keywords  []string
	responses map[string][]string
	intN      func(n int) int
	pub       contract.Publisher
	log       *slog.Logger
}

func NewAutoResponder(responses map[string][]string, pub contract.Publisher, log *slog.Logger, intN func(n int) int) *AutoResponder {
	if intN == nil {
		intN = rand.IntN
	}
	keywords := lo.Filter(lo.Keys(responses), func(k string, _ int) bool { return len(responses[k]) > 0 })
	sort.Strings(keywords)
	return &AutoResponder{keywords: keywords, responses: responses, intN: intN, pub: pub, log: log}
}

// Respond picks a reply for the first keyword found in text.
func (a *AutoResponder) Respond(text string) (string, bool) {
	keyword, ok := containsFold(text, a.keywords)
	if !ok {
		return "", false
	}
	options := a.responses[keyword]
	return options[a.intN(len(options))], true
}

// Consume replies to chat_message deltas.
func (a *AutoResponder) Consume(_ context.Context, evt event.Event) error {
	d, ok := evt.Delta()
	if !ok || d.Topic != event.TopicChatMessage {
		return nil
	}
	line, ok := d.Data.(domain.ChatLine)
	if !ok {
		return fmt.Errorf("chat message delta: %w", errors.ErrInvalidPayload)
	}
	reply, ok := a.Respond(line.Content)
	if !ok {
		return nil
	}
	a.log.Debug("Auto response", "viewer_id", line.ViewerID, "reply", reply)
	a.pub.Publish(event.NewDelta(event.TopicBotReply, event.BotReply{To: line.ViewerID, Text: reply}))
	return nil
}
