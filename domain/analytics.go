package domain

import "time"

// Bucket folds the event stream over one fixed time window.
type Bucket struct {
	Start        time.Time         `json:"start"`
	Window       time.Duration     `json:"window"`
	Messages     uint64            `json:"messages"`
	Commands     uint64            `json:"commands"`
	Gifts        uint64            `json:"gifts"`
	GiftUnits    uint64            `json:"gift_units"`
	Follows      uint64            `json:"follows"`
	Likes        uint64            `json:"likes"`
	Joins        uint64            `json:"joins"`
	PointsEarned int64             `json:"points_earned"`
	PointsSpent  int64             `json:"points_spent"`
	Rejections   map[string]uint64 `json:"rejections"`
	Unknown      uint64            `json:"unknown"`
	Forbidden    uint64            `json:"forbidden"`
	BusDrops     uint64            `json:"bus_drops"`
}

func NewBucket(start time.Time, window time.Duration) *Bucket {
	return &Bucket{Start: start, Window: window, Rejections: make(map[string]uint64)}
}

// StatsSnapshot is what the stats overlay and the API receive.
type StatsSnapshot struct {
	At              time.Time         `json:"at"`
	Uptime          time.Duration     `json:"uptime"`
	Viewers         int               `json:"viewers"`
	MessagesPerMin  float64           `json:"messages_per_min"`
	GiftsPerMin     float64           `json:"gifts_per_min"`
	NewFollows      uint64            `json:"new_follows"`
	PointFlow       int64             `json:"point_flow"`
	TotalMessages   uint64            `json:"total_messages"`
	TotalGifts      uint64            `json:"total_gifts"`
	TotalRejections map[string]uint64 `json:"total_rejections"`
	BusDrops        uint64            `json:"bus_drops"`
	Current         Bucket            `json:"current"`
}
