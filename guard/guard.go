package guard

import (
	"log/slog"
	"strings"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"sync"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// WordFilter finds banned words in a text.
type WordFilter interface {
	Contains(text string) []string
}

type Config struct {
	// Threshold admitted messages are allowed per Window.
	Threshold int
	Window    time.Duration
	// History is how many admitted messages are compared for near duplicates.
	History    int
	Similarity float64
	// Messages shorter than MinDuplicateRunes skip the duplicate check.
	MinDuplicateRunes int
	IdleTTL           time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threshold:         5,
		Window:            10 * time.Second,
		History:           5,
		Similarity:        0.8,
		MinDuplicateRunes: 8,
		IdleTTL:           30 * time.Minute,
	}
}

type Decision struct {
	Admitted bool
	Reason   event.Reason
	Words    []string
}

func admit() Decision { return Decision{Admitted: true} }

func reject(reason event.Reason) Decision { return Decision{Reason: reason} }

// viewerState is bounded: Threshold timestamps and History shingle sets.
type viewerState struct {
	mu       sync.Mutex
	times    []time.Time
	tHead    int
	tSize    int
	history  []map[uint64]struct{}
	hNext    int
	lastSeen time.Time
}

// Guard admits or rejects comments before they reach the router.
type Guard struct {
	cfg    Config
	filter WordFilter
	log    *slog.Logger

	mu     sync.Mutex
	states map[domain.ViewerID]*viewerState
}

func New(cfg Config, filter WordFilter, log *slog.Logger) *Guard {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	if cfg.History < 0 {
		cfg.History = 0
	}
	return &Guard{
		cfg:    cfg,
		filter: filter,
		log:    log,
		states: make(map[domain.ViewerID]*viewerState),
	}
}

func (g *Guard) stateOf(id domain.ViewerID) *viewerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.states[id]
	if !ok {
		s = &viewerState{
			times:   make([]time.Time, g.cfg.Threshold),
			history: make([]map[uint64]struct{}, g.cfg.History),
		}
		g.states[id] = s
	}
	return s
}

// Check decides on one comment. Checks run in a fixed order and the first failing one wins.
func (g *Guard) Check(v domain.Viewer, text string, at time.Time) Decision {
	if v.Banned {
		return reject(event.ReasonBanned)
	}
	if v.IsTimedOut(at) {
		return reject(event.ReasonTimedOut)
	}

	s := g.stateOf(v.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = at

	if v.Role() < domain.RoleModerator && s.tSize == len(s.times) {
		oldest := s.times[s.tHead]
		if at.Sub(oldest) < g.cfg.Window {
			return reject(event.ReasonRate)
		}
	}

	if words := g.Filter(text); len(words) > 0 {
		d := reject(event.ReasonBannedWord)
		d.Words = words
		return d
	}

	var shingles map[uint64]struct{}
	if len(s.history) > 0 && runeCount(text) >= g.cfg.MinDuplicateRunes {
		shingles = Shingles(text)
		for _, prev := range s.history {
			if prev != nil && Jaccard(shingles, prev) >= g.cfg.Similarity {
				return reject(event.ReasonDuplicate)
			}
		}
	}

	s.record(at, shingles)
	return admit()
}

// Filter exposes the banned-word check on its own.
func (g *Guard) Filter(text string) []string {
	if g.filter == nil {
		return nil
	}
	return g.filter.Contains(text)
}

// Sweep forgets viewers idle for longer than IdleTTL and returns how many were removed.
func (g *Guard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for id, s := range g.states {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen) > g.cfg.IdleTTL
		s.mu.Unlock()
		if idle {
			delete(g.states, id)
			removed++
		}
	}
	if removed > 0 {
		g.log.Debug("Guard state swept", "removed", removed, "left", len(g.states))
	}
	return removed
}

// Tracked is the number of viewers with guard state.
func (g *Guard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.states)
}

func (s *viewerState) record(at time.Time, shingles map[uint64]struct{}) {
	if s.tSize < len(s.times) {
		s.times[(s.tHead+s.tSize)%len(s.times)] = at
		s.tSize++
	} else {
		s.times[s.tHead] = at
		s.tHead = (s.tHead + 1) % len(s.times)
	}
	if shingles != nil && len(s.history) > 0 {
		s.history[s.hNext] = shingles
		s.hNext = (s.hNext + 1) % len(s.history)
	}
}

const shingleSize = 3

// Shingles hashes the rune 3-grams of the normalized text.
// A text shorter than three runes is a single shingle.
func Shingles(text string) map[uint64]struct{} {
	runes := normalize(text)
	set := make(map[uint64]struct{})
	if len(runes) == 0 {
		return set
	}
	if len(runes) < shingleSize {
		set[xxhash.Sum64String(string(runes))] = struct{}{}
		return set
	}
	for i := 0; i+shingleSize <= len(runes); i++ {
		set[xxhash.Sum64String(string(runes[i:i+shingleSize]))] = struct{}{}
	}
	return set
}

// Jaccard is the size of the intersection over the size of the union.
func Jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for h := range small {
		if _, ok := large[h]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func normalize(text string) []rune {
	out := make([]rune, 0, len(text))
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		if unicode.IsSpace(r) {
			if !space {
				out = append(out, ' ')
			}
			space = true
			continue
		}
		space = false
		out = append(out, r)
	}
	return out
}

func runeCount(text string) int {
	return len([]rune(strings.TrimSpace(text)))
}
