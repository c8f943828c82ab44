// Package domain contains core concepts of the stream system.
// This file defines chat lines as they are archived and shown on the chat overlay.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatLine is an admitted, censored chat message.
type ChatLine struct {
	ID          uuid.UUID `json:"id"`
	Channel     string    `json:"channel"`
	ViewerID    ViewerID  `json:"viewer_id"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	Role        string    `json:"role"`
	Seq         uint64    `json:"seq"`
	At          time.Time `json:"at"`
}
