package domain

import (
	"time"

	"github.com/google/uuid"
)

type QueueKind string

const (
	QueueMusic QueueKind = "music"
	QueueTTS   QueueKind = "tts"
)

type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusActive  ItemStatus = "active"
	StatusDone    ItemStatus = "done"
	StatusFailed  ItemStatus = "failed"
	StatusSkipped ItemStatus = "skipped"
)

// Final reports whether no further transition is allowed.
func (s ItemStatus) Final() bool {
	return s == StatusDone || s == StatusFailed || s == StatusSkipped
}

// QueueItem is one unit of work owned by a feature queue.
type QueueItem struct {
	ID            uuid.UUID  `json:"id"`
	Kind          QueueKind  `json:"kind"`
	Requester     ViewerID   `json:"requester"`
	RequesterName string     `json:"requester_name"`
	Payload       string     `json:"payload"`
	Lang          string     `json:"lang,omitempty"`
	Priority      bool       `json:"priority,omitempty"`
	EnqueuedAt    time.Time  `json:"enqueued_at"`
	Status        ItemStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	Result        string     `json:"result,omitempty"`
}

// QueueSnapshot is the full observable state of a queue, safe to resend.
type QueueSnapshot struct {
	Kind    QueueKind   `json:"kind"`
	Active  *QueueItem  `json:"active,omitempty"`
	Pending []QueueItem `json:"pending"`
	History []QueueItem `json:"history,omitempty"`
	Votes   int         `json:"votes,omitempty"`
	Needed  int         `json:"needed,omitempty"`
}

// BackendRequest leaves the core towards a music or speech backend.
type BackendRequest struct {
	ID        uuid.UUID `json:"id"`
	Kind      QueueKind `json:"kind"`
	Payload   string    `json:"payload"`
	Lang      string    `json:"lang,omitempty"`
	Requester ViewerID  `json:"requester"`
	Attempt   int       `json:"attempt"`
}

// Completion comes back from a backend for a previously submitted request.
type Completion struct {
	RequestID uuid.UUID
	Result    string
	Err       error
}
