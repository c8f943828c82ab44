package event

import (
	"log/slog"
	"sort"
	"stream-lab/errors"
	"sync"
)

// CensoredHandler counts banned word hits so the noisiest words can be reviewed.
type CensoredHandler struct {
	mu      sync.Mutex
	log     *slog.Logger
	counter uint64
	hit     map[string]uint64
}

func NewCensoredHandler(log *slog.Logger) *CensoredHandler {
	return &CensoredHandler{
		log: log,
		hit: make(map[string]uint64),
	}
}

func (h *CensoredHandler) Handle(t Telemetry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch t.Type {
	case CensorshipHitType:
		payload, ok := t.Payload.(CensorshipHit)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter++
		for _, w := range payload.Words {
			h.hit[w]++
		}
	}
}

type WordHit struct {
	Word  string
	Count uint64
}

// Top returns the n most hit words.
func (h *CensoredHandler) Top(n int) []WordHit {
	h.mu.Lock()
	defer h.mu.Unlock()
	hits := make([]WordHit, 0, len(h.hit))
	for w, c := range h.hit {
		hits = append(hits, WordHit{Word: w, Count: c})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Count == hits[j].Count {
			return hits[i].Word < hits[j].Word
		}
		return hits[i].Count > hits[j].Count
	})
	if n < len(hits) {
		hits = hits[:n]
	}
	return hits
}

func (h *CensoredHandler) Total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counter
}
