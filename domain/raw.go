package domain

import "time"

// RawEvent is what an ingestion adapter hands over before the bus assigns a sequence number.
type RawEvent struct {
	Kind        string    `json:"kind" validate:"required,oneof=comment gift follow like join"`
	ViewerID    string    `json:"viewer_id" validate:"required,max=128"`
	DisplayName string    `json:"display_name" validate:"max=128"`
	Text        string    `json:"text" validate:"required_if=Kind comment,max=2000"`
	GiftName    string    `json:"gift_name,omitempty" validate:"max=64"`
	Count       int       `json:"count,omitempty" validate:"gte=0,lte=100000"`
	Value       int64     `json:"value,omitempty" validate:"gte=0"`
	Moderator   bool      `json:"moderator,omitempty"`
	Broadcaster bool      `json:"broadcaster,omitempty"`
	VIP         bool      `json:"vip,omitempty"`
	At          time.Time `json:"at,omitempty"`
}
