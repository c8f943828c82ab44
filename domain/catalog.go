package domain

import "time"

// Catalog holds the configurable, non-code parts of the bot.
type Catalog struct {
	Commands      map[string]string     `mapstructure:"commands"`
	AutoResponses map[string][]string   `mapstructure:"auto_responses"`
	SpamKeywords  []string              `mapstructure:"spam_keywords"`
	MusicBlocked  []string              `mapstructure:"music_blocked"`
	Shop          map[string]ShopItem   `mapstructure:"shop"`
	Goals         []Goal                `mapstructure:"goals"`
	Alerts        map[string]SoundAlert `mapstructure:"alerts"`
}

type ShopItem struct {
	Name        string `mapstructure:"name" json:"name"`
	Cost        int64  `mapstructure:"cost" json:"cost"`
	Description string `mapstructure:"description" json:"description"`
}

type GoalType string

const (
	GoalFollowers GoalType = "followers"
	GoalMessages  GoalType = "messages"
	GoalGifts     GoalType = "gifts"
)

type Goal struct {
	ID        string   `mapstructure:"id" json:"id"`
	Title     string   `mapstructure:"title" json:"title"`
	Type      GoalType `mapstructure:"type" json:"type"`
	Target    int      `mapstructure:"target" json:"target"`
	Current   int      `mapstructure:"current" json:"current"`
	Active    bool     `mapstructure:"active" json:"active"`
	Completed bool     `mapstructure:"completed" json:"completed"`
}

// AlertTrigger names the raw event kind an alert reacts to.
type AlertTrigger string

const (
	TriggerFollow AlertTrigger = "follow"
	TriggerGift   AlertTrigger = "gift"
	TriggerLike   AlertTrigger = "like"
	TriggerJoin   AlertTrigger = "join"
)

type SoundAlert struct {
	Name     string        `mapstructure:"name" json:"name"`
	Trigger  AlertTrigger  `mapstructure:"trigger" json:"trigger"`
	Sound    string        `mapstructure:"sound" json:"sound"`
	Volume   float64       `mapstructure:"volume" json:"volume"`
	Cooldown time.Duration `mapstructure:"cooldown" json:"cooldown"`
	MinCount int           `mapstructure:"min_count" json:"min_count"`
}

// DefaultCatalog mirrors what the bot ships with when no catalog file is given.
func DefaultCatalog() Catalog {
	return Catalog{
		Commands: map[string]string{
			"info":    "This stream is automated by stream-lab.",
			"discord": "Join the community on Discord, link in the description.",
		},
		AutoResponses: map[string][]string{
			"안녕":  {"안녕하세요! 👋", "반가워요!"},
			"hello": {"Hello! 👋", "Welcome in!"},
			"bye":   {"See you next time! 👋"},
		},
		SpamKeywords: []string{"스팸", "광고", "홍보"},
		Shop: map[string]ShopItem{
			"item":      {Name: "item", Cost: 10, Description: "A small thank you"},
			"highlight": {Name: "highlight", Cost: 100, Description: "Highlight your next message"},
			"song":      {Name: "song", Cost: 50, Description: "Priority song request"},
		},
		Goals: []Goal{
			{ID: "followers_100", Title: "100 followers", Type: GoalFollowers, Target: 100, Active: true},
			{ID: "messages_500", Title: "500 chat messages", Type: GoalMessages, Target: 500, Active: true},
			{ID: "gifts_50", Title: "50 gifts", Type: GoalGifts, Target: 50, Active: true},
		},
		Alerts: map[string]SoundAlert{
			"follow":   {Name: "New follower", Trigger: TriggerFollow, Sound: "follow.wav", Volume: 0.8, Cooldown: 2 * time.Second},
			"gift":     {Name: "Gift", Trigger: TriggerGift, Sound: "gift.wav", Volume: 0.9, Cooldown: time.Second, MinCount: 1},
			"big_gift": {Name: "Big gift", Trigger: TriggerGift, Sound: "big_gift.wav", Volume: 1, Cooldown: 3 * time.Second, MinCount: 10},
			"like":     {Name: "Likes", Trigger: TriggerLike, Sound: "like.wav", Volume: 0.4, Cooldown: 10 * time.Second},
			"join":     {Name: "Viewer joined", Trigger: TriggerJoin, Sound: "join.wav", Volume: 0.6, Cooldown: 30 * time.Second},
		},
	}
}
