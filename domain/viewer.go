package domain

import (
	"fmt"
	"strings"
	"time"
)

type ViewerID string

// Role is ordered: a higher value can do everything a lower one can.
type Role int

const (
	RoleAnyone Role = iota
	RoleVIP
	RoleModerator
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleVIP:
		return "vip"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "anyone"
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "anyone":
		return RoleAnyone, nil
	case "vip":
		return RoleVIP, nil
	case "moderator", "mod":
		return RoleModerator, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleAnyone, fmt.Errorf("unknown role %q", s)
}

// Viewer is the authoritative state of one audience member.
// Points are never negative, the directory refuses any mutation breaking this.
type Viewer struct {
	ID            ViewerID      `json:"id"`
	DisplayName   string        `json:"display_name"`
	Points        int64         `json:"points"`
	Experience    int64         `json:"experience"`
	Level         int           `json:"level"`
	VIP           bool          `json:"vip"`
	Elevated      Role          `json:"elevated"`
	Banned        bool          `json:"banned"`
	TimedOutUntil time.Time     `json:"timed_out_until"`
	Warnings      int           `json:"warnings"`
	Messages      uint64        `json:"messages"`
	WatchTime     time.Duration `json:"watch_time"`
	FirstSeen     time.Time     `json:"first_seen"`
	LastSeen      time.Time     `json:"last_seen"`
}

// Role returns the highest role the viewer holds.
func (v Viewer) Role() Role {
	if v.Elevated > RoleVIP {
		return v.Elevated
	}
	if v.VIP {
		return RoleVIP
	}
	return RoleAnyone
}

func (v Viewer) IsTimedOut(at time.Time) bool {
	return !v.TimedOutUntil.IsZero() && at.Before(v.TimedOutUntil)
}

// Name falls back to the id when the platform never sent a display name.
func (v Viewer) Name() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}
	return string(v.ID)
}

const experiencePerLevel = 100

// AddExperience grows experience and recomputes the level.
func (v *Viewer) AddExperience(xp int64) {
	v.Experience += xp
	v.Level = int(v.Experience/experiencePerLevel) + 1
}
