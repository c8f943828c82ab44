package directory

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"stream-lab/domain"
	"stream-lab/errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

// Hints are platform badges seen on an event.
type Hints struct {
	Moderator   bool
	Broadcaster bool
	VIP         bool
}

type shard struct {
	mu      sync.Mutex
	viewers map[domain.ViewerID]*domain.Viewer
}

// Directory is the single owner of viewer state.
// Every mutation of one viewer is serialized by the lock of its shard.
type Directory struct {
	shards   [shardCount]*shard
	admins   map[domain.ViewerID]struct{}
	watchGap time.Duration
	log      *slog.Logger
}

func New(log *slog.Logger, admins []string, watchGap time.Duration) *Directory {
	d := &Directory{
		admins:   make(map[domain.ViewerID]struct{}, len(admins)),
		watchGap: watchGap,
		log:      log,
	}
	for i := range d.shards {
		d.shards[i] = &shard{viewers: make(map[domain.ViewerID]*domain.Viewer)}
	}
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			d.admins[domain.ViewerID(a)] = struct{}{}
		}
	}
	return d
}

func shardIndex(id domain.ViewerID) int {
	return int(xxhash.Sum64String(string(id)) % shardCount)
}

func (d *Directory) shardOf(id domain.ViewerID) *shard {
	return d.shards[shardIndex(id)]
}

// Observe creates the viewer on first sight, refreshes the display name,
// accrues watch time and applies platform badges.
func (d *Directory) Observe(id domain.ViewerID, name string, at time.Time, hints Hints) domain.Viewer {
	s := d.shardOf(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.viewers[id]
	if !ok {
		v = &domain.Viewer{ID: id, FirstSeen: at, LastSeen: at, Level: 1}
		if _, admin := d.admins[id]; admin {
			v.Elevated = domain.RoleAdmin
		}
		s.viewers[id] = v
		d.log.Debug("New viewer", "viewer_id", id, "name", name)
	}
	if name != "" {
		v.DisplayName = name
	}
	if gap := at.Sub(v.LastSeen); gap > 0 && gap <= d.watchGap {
		v.WatchTime += gap
	}
	if at.After(v.LastSeen) {
		v.LastSeen = at
	}
	switch {
	case hints.Broadcaster:
		v.Elevated = domain.RoleAdmin
	case hints.Moderator && v.Elevated < domain.RoleModerator:
		v.Elevated = domain.RoleModerator
	}
	if hints.VIP {
		v.VIP = true
	}
	return *v
}

func (d *Directory) Get(id domain.ViewerID) (domain.Viewer, bool) {
	s := d.shardOf(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[id]
	if !ok {
		return domain.Viewer{}, false
	}
	return *v, true
}

// FindByName resolves "@name", a display name or an id, case-insensitively.
func (d *Directory) FindByName(name string) (domain.Viewer, bool) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name == "" {
		return domain.Viewer{}, false
	}
	if v, ok := d.Get(domain.ViewerID(name)); ok {
		return v, true
	}
	for _, s := range d.shards {
		s.mu.Lock()
		for _, v := range s.viewers {
			if strings.EqualFold(v.DisplayName, name) || strings.EqualFold(string(v.ID), name) {
				found := *v
				s.mu.Unlock()
				return found, true
			}
		}
		s.mu.Unlock()
	}
	return domain.Viewer{}, false
}

// All returns a copy of every viewer sorted by id.
func (d *Directory) All() []domain.Viewer {
	var all []domain.Viewer
	for _, s := range d.shards {
		s.mu.Lock()
		for _, v := range s.viewers {
			all = append(all, *v)
		}
		s.mu.Unlock()
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (d *Directory) Len() int {
	n := 0
	for _, s := range d.shards {
		s.mu.Lock()
		n += len(s.viewers)
		s.mu.Unlock()
	}
	return n
}

// ActiveSince counts viewers seen at or after t.
func (d *Directory) ActiveSince(t time.Time) int {
	n := 0
	for _, s := range d.shards {
		s.mu.Lock()
		for _, v := range s.viewers {
			if !v.LastSeen.Before(t) {
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

// Update runs fn on a copy of the viewer and commits it only when fn succeeds
// and the result still holds the invariants.
func (d *Directory) Update(id domain.ViewerID, fn func(v *domain.Viewer) error) (domain.Viewer, error) {
	s := d.shardOf(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.viewers[id]
	if !ok {
		return domain.Viewer{}, fmt.Errorf("viewer %s: %w", id, errors.ErrNotFound)
	}
	next := *cur
	if err := fn(&next); err != nil {
		return *cur, err
	}
	if err := validate(next); err != nil {
		d.log.Error("Refused viewer mutation", "viewer_id", id, "error", err)
		return *cur, err
	}
	*cur = next
	return next, nil
}

// UpdatePair mutates two viewers atomically. Shard locks are taken in ascending
// order so concurrent pairs never deadlock.
func (d *Directory) UpdatePair(a, b domain.ViewerID, fn func(a, b *domain.Viewer) error) (domain.Viewer, domain.Viewer, error) {
	if a == b {
		return domain.Viewer{}, domain.Viewer{}, fmt.Errorf("same viewer on both sides: %w", errors.ErrInvalidArgument)
	}
	ia, ib := shardIndex(a), shardIndex(b)
	first, second := ia, ib
	if first > second {
		first, second = second, first
	}
	d.shards[first].mu.Lock()
	defer d.shards[first].mu.Unlock()
	if second != first {
		d.shards[second].mu.Lock()
		defer d.shards[second].mu.Unlock()
	}

	curA, ok := d.shards[ia].viewers[a]
	if !ok {
		return domain.Viewer{}, domain.Viewer{}, fmt.Errorf("viewer %s: %w", a, errors.ErrNotFound)
	}
	curB, ok := d.shards[ib].viewers[b]
	if !ok {
		return domain.Viewer{}, domain.Viewer{}, fmt.Errorf("viewer %s: %w", b, errors.ErrNotFound)
	}
	nextA, nextB := *curA, *curB
	if err := fn(&nextA, &nextB); err != nil {
		return *curA, *curB, err
	}
	for _, v := range []domain.Viewer{nextA, nextB} {
		if err := validate(v); err != nil {
			d.log.Error("Refused viewer mutation", "viewer_id", v.ID, "error", err)
			return *curA, *curB, err
		}
	}
	*curA, *curB = nextA, nextB
	return nextA, nextB, nil
}

// Restore loads viewers from a snapshot. Existing entries are replaced.
func (d *Directory) Restore(viewers []domain.Viewer) {
	for _, v := range viewers {
		if v.ID == "" {
			continue
		}
		if v.Points < 0 {
			d.log.Warn("Snapshot viewer with negative points reset to zero", "viewer_id", v.ID)
			v.Points = 0
		}
		cp := v
		s := d.shardOf(v.ID)
		s.mu.Lock()
		s.viewers[v.ID] = &cp
		s.mu.Unlock()
	}
}

func validate(v domain.Viewer) error {
	if v.Points < 0 {
		return fmt.Errorf("viewer %s would hold %d points: %w", v.ID, v.Points, errors.ErrInternal)
	}
	return nil
}
