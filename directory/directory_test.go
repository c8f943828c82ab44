package directory

import (
	"fmt"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/errors"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func newDirectory(admins ...string) *Directory {
	return New(logs.GetLoggerFromLevel(slog.LevelDebug), admins, 5*time.Minute)
}

func TestDirectory_Observe_Creates_And_Refreshes(t *testing.T) {
	req := require.New(t)
	d := newDirectory("boss")

	// When a viewer is seen twice within the watch gap
	v := d.Observe("u1", "Alice", t0, Hints{})
	req.Equal(domain.ViewerID("u1"), v.ID)
	req.Equal(1, v.Level)
	req.Equal(domain.RoleAnyone, v.Role())

	v = d.Observe("u1", "", t0.Add(time.Minute), Hints{})

	// Then the name is kept and watch time accrued
	req.Equal("Alice", v.DisplayName)
	req.Equal(time.Minute, v.WatchTime)
	req.Equal(t0, v.FirstSeen)
	req.Equal(t0.Add(time.Minute), v.LastSeen)

	// And a long gap is not counted as watch time
	v = d.Observe("u1", "Alice", t0.Add(time.Hour), Hints{})
	req.Equal(time.Minute, v.WatchTime)

	// And configured admins are elevated on first sight
	req.Equal(domain.RoleAdmin, d.Observe("boss", "Boss", t0, Hints{}).Role())
	req.Equal(2, d.Len())
}

func TestDirectory_Observe_Applies_Badges(t *testing.T) {
	req := require.New(t)
	d := newDirectory()

	req.Equal(domain.RoleModerator, d.Observe("m", "Mod", t0, Hints{Moderator: true}).Role())
	req.Equal(domain.RoleVIP, d.Observe("v", "Vip", t0, Hints{VIP: true}).Role())
	req.Equal(domain.RoleAdmin, d.Observe("b", "Streamer", t0, Hints{Broadcaster: true}).Role())

	// A badge never downgrades a role
	req.Equal(domain.RoleAdmin, d.Observe("b", "Streamer", t0, Hints{Moderator: true}).Role())
}

func TestDirectory_FindByName(t *testing.T) {
	req := require.New(t)
	d := newDirectory()
	d.Observe("id-42", "Alice", t0, Hints{})

	for _, name := range []string{"@alice", "ALICE", "id-42", "@id-42"} {
		v, ok := d.FindByName(name)
		req.True(ok, name)
		req.Equal(domain.ViewerID("id-42"), v.ID)
	}
	_, ok := d.FindByName("@bob")
	req.False(ok)
	_, ok = d.FindByName("@")
	req.False(ok)
}

func TestDirectory_Update_Refuses_Negative_Points(t *testing.T) {
	req := require.New(t)
	d := newDirectory()
	d.Observe("u1", "Alice", t0, Hints{})

	// When a mutation would break the points invariant
	v, err := d.Update("u1", func(v *domain.Viewer) error {
		v.Points -= 10
		v.Warnings = 3
		return nil
	})

	// Then nothing is committed
	req.ErrorIs(err, errors.ErrInternal)
	req.Zero(v.Points)
	stored, _ := d.Get("u1")
	req.Zero(stored.Points)
	req.Zero(stored.Warnings)
}

func TestDirectory_Update_Does_Not_Commit_On_Error(t *testing.T) {
	req := require.New(t)
	d := newDirectory()
	d.Observe("u1", "Alice", t0, Hints{})

	_, err := d.Update("u1", func(v *domain.Viewer) error {
		v.Points = 500
		return errors.ErrRejected
	})
	req.ErrorIs(err, errors.ErrRejected)
	stored, _ := d.Get("u1")
	req.Zero(stored.Points)

	_, err = d.Update("ghost", func(v *domain.Viewer) error { return nil })
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestDirectory_UpdatePair_Concurrent_Transfers(t *testing.T) {
	req := require.New(t)
	d := newDirectory()
	viewers := 20
	for i := 0; i < viewers; i++ {
		id := domain.ViewerID(fmt.Sprintf("u%d", i))
		d.Observe(id, "", t0, Hints{})
		_, err := d.Update(id, func(v *domain.Viewer) error {
			v.Points = 1000
			return nil
		})
		req.NoError(err)
	}

	// When viewers transfer points to each other in both directions concurrently
	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		for j := 0; j < viewers; j++ {
			if i == j {
				continue
			}
			wg.Add(1)
			go func(a, b domain.ViewerID) {
				defer wg.Done()
				_, _, _ = d.UpdatePair(a, b, func(a, b *domain.Viewer) error {
					a.Points -= 7
					b.Points += 7
					return nil
				})
			}(domain.ViewerID(fmt.Sprintf("u%d", i)), domain.ViewerID(fmt.Sprintf("u%d", j)))
		}
	}
	wg.Wait()

	// Then no deadlock happened and the total is conserved
	var total int64
	for _, v := range d.All() {
		req.GreaterOrEqual(v.Points, int64(0))
		total += v.Points
	}
	req.Equal(int64(viewers*1000), total)
}

func TestDirectory_UpdatePair_Is_Atomic(t *testing.T) {
	req := require.New(t)
	d := newDirectory()
	d.Observe("a", "", t0, Hints{})
	d.Observe("b", "", t0, Hints{})

	// When the sender cannot afford the transfer
	_, _, err := d.UpdatePair("a", "b", func(a, b *domain.Viewer) error {
		a.Points -= 5
		b.Points += 5
		return nil
	})

	// Then neither side changed
	req.ErrorIs(err, errors.ErrInternal)
	a, _ := d.Get("a")
	b, _ := d.Get("b")
	req.Zero(a.Points)
	req.Zero(b.Points)

	_, _, err = d.UpdatePair("a", "a", func(a, b *domain.Viewer) error { return nil })
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestDirectory_Restore_And_ActiveSince(t *testing.T) {
	req := require.New(t)
	d := newDirectory()

	d.Restore([]domain.Viewer{
		{ID: "old", Points: 40, LastSeen: t0.Add(-time.Hour)},
		{ID: "new", Points: -3, LastSeen: t0},
		{ID: ""},
	})

	req.Equal(2, d.Len())
	v, ok := d.Get("old")
	req.True(ok)
	req.Equal(int64(40), v.Points)
	v, _ = d.Get("new")
	req.Zero(v.Points)
	req.Equal(1, d.ActiveSince(t0.Add(-time.Minute)))
	req.Equal(2, d.ActiveSince(t0.Add(-2*time.Hour)))
}
