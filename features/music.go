package features

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"time"
)

var (
	musicRequestNames = []string{"music", "play", "song"}
	musicInfoNames    = []string{"queue", "np", "skip", "remove"}
	musicModNames     = []string{"clearqueue"}
)

// ActivityCounter tells how many viewers were active recently.
type ActivityCounter interface {
	ActiveSince(t time.Time) int
}

type MusicConfig struct {
	Queue        QueueConfig
	SkipFraction float64
	ActiveWindow time.Duration
	Blocked      []string
}

func DefaultMusicConfig() MusicConfig {
	return MusicConfig{
		Queue:        QueueConfig{Kind: domain.QueueMusic, Capacity: 50, PerUser: 3, History: 20, MaxAttempts: 3},
		SkipFraction: 0.5,
		ActiveWindow: 5 * time.Minute,
	}
}

// Music is the song request queue. Requests wait as pending, only the playback side
// (poll, completion), a passed vote or a privileged skip moves it forward.
type Music struct {
	cfg      MusicConfig
	queue    *workQueue
	activity ActivityCounter
	names    nameSet
	log      *slog.Logger
	now      func() time.Time
}

func NewMusic(cfg MusicConfig, activity ActivityCounter, pub contract.Publisher, log *slog.Logger) *Music {
	cfg.Queue.Kind = domain.QueueMusic
	return &Music{
		cfg:      cfg,
		queue:    newWorkQueue(cfg.Queue, event.TopicMusicQueueUpdated, pub, log),
		activity: activity,
		names:    newNameSet(musicRequestNames, musicInfoNames, musicModNames),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Music) Routes() []Route {
	return []Route{
		{Handler: m, MinRole: domain.RoleAnyone, Names: append(append([]string{}, musicRequestNames...), musicInfoNames...)},
		{Handler: m, MinRole: domain.RoleModerator, Names: musicModNames},
	}
}

func (m *Music) CanHandle(name string) bool { return m.names.has(name) }

func (m *Music) Handle(_ context.Context, inv domain.Invocation, _ contract.Publisher) (contract.Result, error) {
	switch inv.Name {
	case "music", "play", "song":
		return m.request(inv)
	case "queue":
		return contract.Result{Message: m.describeQueue()}, nil
	case "np":
		snap := m.queue.Snapshot()
		if snap.Active == nil {
			return contract.Result{}, fmt.Errorf("nothing is playing: %w", errors.ErrNotFound)
		}
		return contract.Result{Message: fmt.Sprintf("🎵 Now playing: %s (by %s)", snap.Active.Payload, snap.Active.RequesterName), Item: snap.Active}, nil
	case "skip":
		return m.skip(inv)
	case "remove":
		return m.remove(inv)
	case "clearqueue":
		n := m.queue.clear()
		return contract.Result{Message: fmt.Sprintf("🗑️ %d requests removed", n)}, nil
	}
	return contract.Result{}, errors.ErrUnknownCommand
}

func (m *Music) request(inv domain.Invocation) (contract.Result, error) {
	query := strings.TrimSpace(inv.Rest)
	if query == "" {
		return contract.Result{}, fmt.Errorf("usage: !%s <song>: %w", inv.Name, errors.ErrInvalidArgument)
	}
	if k, blocked := containsFold(query, m.cfg.Blocked); blocked {
		m.log.Debug("Blocked music request", "viewer_id", inv.Issuer.ID, "keyword", k)
		return contract.Result{}, fmt.Errorf("request contains a blocked keyword: %w", errors.ErrRejected)
	}
	item, err := m.queue.enqueue(inv.Issuer, query, "", false)
	if err != nil {
		return contract.Result{}, err
	}
	return contract.Result{
		Status:  event.StatusQueued,
		Message: fmt.Sprintf("🎵 %s added to the queue", query),
		Item:    &item,
	}, nil
}

func (m *Music) skip(inv domain.Invocation) (contract.Result, error) {
	snap := m.queue.Snapshot()
	if snap.Active == nil {
		return contract.Result{}, fmt.Errorf("nothing is playing: %w", errors.ErrNotFound)
	}
	if inv.Issuer.Role() >= domain.RoleModerator || snap.Active.Requester == inv.Issuer.ID {
		skipped, err := m.queue.skip()
		if err != nil {
			return contract.Result{}, err
		}
		return contract.Result{Message: fmt.Sprintf("⏭️ %s skipped", skipped.Payload), Item: &skipped}, nil
	}

	needed := m.votesNeeded()
	votes, passed, err := m.queue.vote(inv.Issuer.ID, needed)
	if err != nil {
		return contract.Result{}, err
	}
	if passed {
		return contract.Result{Message: fmt.Sprintf("⏭️ vote passed (%d/%d)", votes, needed)}, nil
	}
	return contract.Result{Message: fmt.Sprintf("🗳️ skip vote %d/%d", votes, needed)}, nil
}

func (m *Music) votesNeeded() int {
	active := m.activity.ActiveSince(m.now().Add(-m.cfg.ActiveWindow))
	needed := int(math.Ceil(m.cfg.SkipFraction * float64(active)))
	if needed < 1 {
		needed = 1
	}
	return needed
}

func (m *Music) remove(inv domain.Invocation) (contract.Result, error) {
	position := 0
	if arg := inv.Arg(0); arg != "" {
		p, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
		if err != nil || p <= 0 {
			return contract.Result{}, fmt.Errorf("usage: !remove [position]: %w", errors.ErrInvalidArgument)
		}
		position = p
	}
	item, err := m.queue.remove(inv.Issuer.ID, position, inv.Issuer.Role() >= domain.RoleModerator)
	if err != nil {
		return contract.Result{}, err
	}
	return contract.Result{Message: fmt.Sprintf("🗑️ %s removed", item.Payload), Item: &item}, nil
}

func (m *Music) describeQueue() string {
	snap := m.queue.Snapshot()
	if snap.Active == nil && len(snap.Pending) == 0 {
		return "📭 The queue is empty"
	}
	var b strings.Builder
	if snap.Active != nil {
		fmt.Fprintf(&b, "▶️ %s", snap.Active.Payload)
	}
	for i, it := range snap.Pending {
		if i == 5 {
			fmt.Fprintf(&b, " … +%d", len(snap.Pending)-5)
			break
		}
		fmt.Fprintf(&b, " | %d. %s", i+1, it.Payload)
	}
	return strings.TrimPrefix(b.String(), " | ")
}

// Advance is called when playback of the active song ended. On an idle
// queue it starts the first pending request.
func (m *Music) Advance() bool { return m.queue.Advance() }

func (m *Music) Snapshot() domain.QueueSnapshot { return m.queue.Snapshot() }
