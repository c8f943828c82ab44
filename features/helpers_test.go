package features

import (
	"log/slog"
	"stream-lab/bus"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/ledger"
	"stream-lab/router"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

type fixture struct {
	log    *slog.Logger
	bus    *bus.Bus
	dir    *directory.Directory
	ledger *ledger.Ledger
	deltas *bus.Subscription
}

func newFixture() *fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	b := bus.New(log)
	return &fixture{
		log:    log,
		bus:    b,
		dir:    directory.New(log, nil, 5*time.Minute),
		ledger: ledger.New(0),
		deltas: b.Subscribe("deltas", 1000, event.KindStateDelta),
	}
}

func (f *fixture) viewer(id string, role domain.Role) domain.Viewer {
	v := f.dir.Observe(domain.ViewerID(id), id, t0, directory.Hints{})
	if role == domain.RoleAnyone {
		return v
	}
	v, _ = f.dir.Update(v.ID, func(v *domain.Viewer) error {
		if role == domain.RoleVIP {
			v.VIP = true
		} else {
			v.Elevated = role
		}
		return nil
	})
	return v
}

func (f *fixture) fund(t *testing.T, id string, points int64) {
	_, err := f.dir.Update(domain.ViewerID(id), func(v *domain.Viewer) error {
		v.Points += points
		return nil
	})
	require.NoError(t, err)
	f.ledger.Append(domain.LedgerEntry{ViewerID: domain.ViewerID(id), Delta: points, Reason: "test"})
}

// drain returns the deltas published so far for a topic.
func (f *fixture) drain(topic event.Topic) []event.StateDelta {
	var out []event.StateDelta
	for {
		e, ok := f.deltas.TryNext()
		if !ok {
			return out
		}
		if d, ok := e.Delta(); ok && d.Topic == topic {
			out = append(out, d)
		}
	}
}

func inv(issuer domain.Viewer, text string) domain.Invocation {
	name, args, rest, _ := router.Parse(text)
	return domain.Invocation{Issuer: issuer, Name: name, Args: args, Rest: rest, Raw: text}
}
