package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is an immutable point delta. A balance is the sum of its entries.
type LedgerEntry struct {
	ID       uuid.UUID `json:"id"`
	ViewerID ViewerID  `json:"viewer_id"`
	Delta    int64     `json:"delta"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
	Seq      uint64    `json:"seq"`
}
